package referral

import (
	"net/http"
	"net/url"
)

// CookieStore is the cookie storage a Tracker reads and writes. Stores are
// allowed to drop writes (for example when cookies are disabled).
type CookieStore interface {
	// Cookies returns every live cookie visible to the storefront.
	Cookies() []*http.Cookie
	// SetCookie stores c, replacing any cookie with the same name and path.
	SetCookie(c *http.Cookie)
}

// JarStore adapts an http.CookieJar to CookieStore, scoped to one storefront
// URL. The jar enforces expiry, so an expired referral simply stops showing
// up in Cookies.
type JarStore struct {
	jar http.CookieJar
	u   *url.URL
}

// NewJarStore scopes jar to storefront.
func NewJarStore(jar http.CookieJar, storefront *url.URL) *JarStore {
	return &JarStore{jar: jar, u: storefront}
}

func (s *JarStore) Cookies() []*http.Cookie {
	return s.jar.Cookies(s.u)
}

func (s *JarStore) SetCookie(c *http.Cookie) {
	s.jar.SetCookies(s.u, []*http.Cookie{c})
}

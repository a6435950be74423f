package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func login(t *testing.T, h http.Handler, refCode string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"ref_code":"`+refCode+`"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == partnerCookie {
			return rec, c
		}
	}
	return rec, nil
}

func partnerGet(h http.Handler, path string, c *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPartner_Login(t *testing.T) {
	router := NewPartnerHandlers(newFakeService(), NewSessionStore(0), true).Routes()

	rec, cookie := login(t, router, "  TOKYO01 ")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	var summary domain.AffiliateSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.NotNil(t, summary.Affiliate)
	assert.Equal(t, "aff-1", summary.Affiliate.ID)
}

func TestPartner_LoginRejected(t *testing.T) {
	router := NewPartnerHandlers(newFakeService(), NewSessionStore(0), true).Routes()

	for _, code := range []string{"nobody", "sleepy", ""} {
		rec, cookie := login(t, router, code)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, code)
		assert.Nil(t, cookie, code)
	}
}

func TestPartner_LoginLookupFailure(t *testing.T) {
	svc := newFakeService()
	svc.err = errors.New("db down")
	rec, cookie := login(t, NewPartnerHandlers(svc, NewSessionStore(0), true).Routes(), "tokyo01")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, cookie)
}

func TestPartner_RequiresSession(t *testing.T) {
	router := NewPartnerHandlers(newFakeService(), NewSessionStore(0), true).Routes()

	for _, path := range []string{"/stats", "/orders", "/clicks", "/payouts", "/links"} {
		assert.Equal(t, http.StatusUnauthorized, partnerGet(router, path, nil).Code, path)
		forged := &http.Cookie{Name: partnerCookie, Value: "forged"}
		assert.Equal(t, http.StatusUnauthorized, partnerGet(router, path, forged).Code, path)
	}
}

func TestPartner_ScopedToOwnData(t *testing.T) {
	svc := newFakeService()
	router := NewPartnerHandlers(svc, NewSessionStore(0), true).Routes()
	_, cookie := login(t, router, "tokyo01")
	require.NotNil(t, cookie)

	rec := partnerGet(router, "/orders", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aff-1", svc.lastOrderFilter.AffiliateID)
	assert.Equal(t, 50, svc.lastOrderFilter.Limit)
	var orders []domain.ReferralOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0].ID)

	rec = partnerGet(router, "/clicks?limit=7", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.lastLimit)

	rec = partnerGet(router, "/payouts", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var payouts []domain.Payout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payouts))
	assert.Len(t, payouts, 1)

	rec = partnerGet(router, "/stats", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ref_code":"tokyo01"`)
}

func TestPartner_Links(t *testing.T) {
	router := NewPartnerHandlers(newFakeService(), NewSessionStore(0), true).Routes()
	_, cookie := login(t, router, "tokyo01")

	rec := partnerGet(router, "/links?path=/products/sakura-tin", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var links linksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	assert.Equal(t, linksResponse{
		RefCode:    "tokyo01",
		ShortCode:  "tk01ab",
		ShortURL:   "https://go.goyoulink.com/tk01ab",
		DirectURL:  "https://goyoutati.com?ref=tokyo01",
		ProductURL: "https://goyoutati.com/products/sakura-tin?ref=tokyo01",
	}, links)
}

func TestPartner_Logout(t *testing.T) {
	sessions := NewSessionStore(0)
	router := NewPartnerHandlers(newFakeService(), sessions, true).Routes()
	_, cookie := login(t, router, "tokyo01")
	require.Equal(t, 1, sessions.Len())

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, sessions.Len())
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	assert.Equal(t, http.StatusUnauthorized, partnerGet(router, "/stats", cookie).Code)
}

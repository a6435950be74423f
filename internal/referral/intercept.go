package referral

import (
	"context"
	"net/http"
	"strings"
)

// interceptor follows every successful add-to-cart round trip with a cart
// attribute write.
type interceptor struct {
	next    http.RoundTripper
	tracker *Tracker
}

func (i *interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.Contains(req.URL.String(), i.tracker.cfg.AddToCartPath) || i.tracker.isCartWrite(req) {
		return i.next.RoundTrip(req)
	}

	// The code is read before the request goes out, as the cart will see it.
	code, ok := i.tracker.ReadPersisted()
	resp, err := i.next.RoundTrip(req)
	if err != nil || !ok {
		return resp, err
	}

	i.tracker.spawn(i.tracker.ctx, func(ctx context.Context) {
		i.tracker.syncWith(ctx, i.tracker.client, code)
	})
	return resp, err
}

// isCartWrite reports whether req is one of the tracker's own cart attribute
// writes. Those never count as add-to-cart, whatever AddToCartPath matches.
func (t *Tracker) isCartWrite(req *http.Request) bool {
	return req.URL.Host == t.cart.Host && req.URL.Path == t.cart.Path
}

// Transport wraps next so add-to-cart requests re-sync the referral code.
// Wrapping a transport that already carries this tracker's interceptor
// returns it unchanged.
func (t *Tracker) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if ic, ok := next.(*interceptor); ok && ic.tracker == t {
		return next
	}
	return &interceptor{next: next, tracker: t}
}

// Register installs the add-to-cart interceptor on c. Registering the same
// client twice is a no-op.
func (t *Tracker) Register(c *http.Client) {
	c.Transport = t.Transport(c.Transport)
}

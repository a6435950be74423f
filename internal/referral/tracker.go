package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/pkg/httpretry"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
)

const logPrefix = "[GoyouLink] "

// Config describes the storefront a Tracker works against.
type Config struct {
	// Storefront is the shop origin; cart endpoints and cookies are scoped to it.
	Storefront *url.URL

	ParamName      string
	CookieName     string
	CookieTTL      time.Duration
	CartUpdatePath string
	AddToCartPath  string
	AttributeName  string

	// SyncDelay is how long the persisted-code sync waits when Ready is nil.
	SyncDelay time.Duration
	// Ready, when set, replaces SyncDelay: the persisted-code sync fires once
	// it is closed.
	Ready <-chan struct{}
	// MaxRetries bounds the retries of the persisted-code sync.
	MaxRetries int
}

// DefaultConfig returns the production settings for storefront.
func DefaultConfig(storefront *url.URL) Config {
	return Config{
		Storefront:     storefront,
		ParamName:      "ref",
		CookieName:     "goyoulink_ref",
		CookieTTL:      30 * 24 * time.Hour,
		CartUpdatePath: "/cart/update.js",
		AddToCartPath:  "/cart/add",
		AttributeName:  "referral_code",
		SyncDelay:      time.Second,
		MaxRetries:     3,
	}
}

// Tracker captures, persists and re-sends one shopper's referral code.
type Tracker struct {
	cfg     Config
	store   CookieStore
	client  httpretry.HTTPDoer
	retry   httpretry.HTTPDoer
	log     *logger.Logger
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
	cart    *url.URL
	cartURL string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithLogger sends diagnostics to l instead of the default logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithClock replaces time.Now and time.After.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
		if after != nil {
			t.after = after
		}
	}
}

// WithRetryBackoff tunes the backoff of the persisted-code sync.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(t *Tracker) {
		t.retry = httpretry.NewRetryClient(t.client, t.cfg.MaxRetries, httpretry.WithBackoff(base, max))
	}
}

// New builds a Tracker that sends cart writes through client and keeps the
// code in store.
func New(cfg Config, client httpretry.HTTPDoer, store CookieStore, opts ...Option) *Tracker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cart := cfg.Storefront.ResolveReference(&url.URL{Path: cfg.CartUpdatePath})
	t := &Tracker{
		cfg:     cfg,
		store:   store,
		client:  client,
		retry:   httpretry.NewRetryClient(client, cfg.MaxRetries),
		log:     logger.Default(),
		now:     time.Now,
		after:   time.After,
		cart:    cart,
		cartURL: cart.String(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ExtractFromLocation returns the decoded value of param in u's query string.
// A missing or empty parameter reports ok=false.
func ExtractFromLocation(u *url.URL, param string) (string, bool) {
	if u == nil {
		return "", false
	}
	code := u.Query().Get(param)
	return code, code != ""
}

// ExtractFromLocation reads the configured referral parameter from u.
func (t *Tracker) ExtractFromLocation(u *url.URL) (string, bool) {
	return ExtractFromLocation(u, t.cfg.ParamName)
}

// Persist stores code for CookieTTL, replacing whatever code was there.
func (t *Tracker) Persist(code string) {
	t.store.SetCookie(&http.Cookie{
		Name:     t.cfg.CookieName,
		Value:    url.QueryEscape(code),
		Path:     "/",
		Expires:  t.now().Add(t.cfg.CookieTTL),
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadPersisted scans the store for the referral cookie.
func (t *Tracker) ReadPersisted() (string, bool) {
	for _, c := range t.store.Cookies() {
		if c.Name != t.cfg.CookieName {
			continue
		}
		code, err := url.QueryUnescape(c.Value)
		if err != nil {
			code = c.Value
		}
		return code, code != ""
	}
	return "", false
}

// SyncToCart writes code onto the cart. Failures are logged, never returned.
func (t *Tracker) SyncToCart(ctx context.Context, code string) {
	t.syncWith(ctx, t.client, code)
}

// Initialize runs the page-load sequence for location: a referral code in
// the URL is persisted and synced right away, then whatever code is
// persisted is synced again once the cart is ready. It does not wait for
// network calls; use Wait or Close for that.
func (t *Tracker) Initialize(ctx context.Context, location *url.URL) {
	if code, ok := t.ExtractFromLocation(location); ok {
		t.Persist(code)
		t.log.Info(logPrefix+"New referral code saved", "ref", code)
		t.spawn(ctx, func(ctx context.Context) {
			t.syncWith(ctx, t.client, code)
		})
	}

	code, ok := t.ReadPersisted()
	if !ok {
		return
	}
	t.log.Info(logPrefix+"Active referral code", "ref", code)
	t.spawn(ctx, func(ctx context.Context) {
		if !t.waitReady(ctx) {
			return
		}
		t.syncWith(ctx, t.retry, code)
	})
}

// Wait blocks until every sync started so far has finished.
func (t *Tracker) Wait() { t.wg.Wait() }

// Close cancels pending syncs and waits for in-flight ones to return.
func (t *Tracker) Close() {
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) waitReady(ctx context.Context) bool {
	var ready <-chan struct{}
	var timer <-chan time.Time
	if t.cfg.Ready != nil {
		ready = t.cfg.Ready
	} else {
		timer = t.after(t.cfg.SyncDelay)
	}

	select {
	case <-ready:
		return true
	case <-timer:
		return true
	case <-ctx.Done():
		return false
	}
}

// spawn runs fn on its own goroutine with a context that ends when either
// ctx or the tracker ends.
func (t *Tracker) spawn(ctx context.Context, fn func(context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.ctx, cancel)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer stop()
		defer cancel()
		fn(runCtx)
	}()
}

type cartUpdate struct {
	Attributes map[string]string `json:"attributes"`
}

func (t *Tracker) syncWith(ctx context.Context, doer httpretry.HTTPDoer, code string) {
	if err := t.push(ctx, doer, code); err != nil {
		t.log.Error(logPrefix+"Error updating cart", "ref", code, "error", err)
		return
	}
	t.log.Info(logPrefix+"Cart attributes updated with ref", "ref", code)
}

func (t *Tracker) push(ctx context.Context, doer httpretry.HTTPDoer, code string) error {
	body, err := json.Marshal(cartUpdate{Attributes: map[string]string{t.cfg.AttributeName: code}})
	if err != nil {
		return fmt.Errorf("encode cart update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cartURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build cart update: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("cart update: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cart update: status %d", resp.StatusCode)
	}
	return nil
}

package tracking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

// AffiliateResolver finds the affiliate behind a short code.
type AffiliateResolver interface {
	GetByShortCode(ctx context.Context, shortCode string) (*domain.Affiliate, error)
}

// Handler serves affiliate short links.
type Handler struct {
	affiliates AffiliateResolver
	sink       Sink
	target     string
	now        func() time.Time
}

// NewHandler builds a short link handler redirecting to target.
func NewHandler(affiliates AffiliateResolver, sink Sink, target string) *Handler {
	return &Handler{affiliates: affiliates, sink: sink, target: target, now: time.Now}
}

// Routes returns a standalone router for the short link domain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.HandleHealth)
	h.Mount(r)
	return r
}

// Mount registers the short link routes on r. They match any single path
// segment, so register them after every static route.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/{shortCode}", h.HandleRedirect)
	r.Get("/{shortCode}/*", h.HandleRedirect)
}

// HandleRedirect sends the visitor to the storefront. Known active
// affiliates get their ref code appended and a click recorded; anything
// else lands on the storefront without attribution.
func (h *Handler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(chi.URLParam(r, "shortCode"))
	path := chi.URLParam(r, "*")

	a, err := h.affiliates.GetByShortCode(r.Context(), code)
	if err != nil && !errors.Is(err, affiliate.ErrNotFound) {
		logger.Warn("short link lookup failed", "short_code", code, "error", err)
	}
	if err != nil || !a.IsActive() {
		http.Redirect(w, r, affiliate.RedirectURL(h.target, path, ""), http.StatusFound)
		return
	}

	h.sink.Publish(r.Context(), ClickEvent{
		ID:          uuid.New().String(),
		AffiliateID: a.ID,
		ShortCode:   code,
		IPAddress:   realIP(r),
		UserAgent:   r.UserAgent(),
		Referer:     r.Referer(),
		LandedURL:   requestURL(r),
		Timestamp:   h.now().UTC(),
	})

	logger.Debug("CLICK", "short_code", code, "affiliate_id", a.ID, "ip", logger.RedactIP(realIP(r)))
	http.Redirect(w, r, affiliate.RedirectURL(h.target, path, a.RefCode), http.StatusFound)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/httputil"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

type partnerKey struct{}

// PartnerHandlers serves the affiliate self-service API.
type PartnerHandlers struct {
	svc      AffiliateService
	sessions *SessionStore
	secure   bool
}

// NewPartnerHandlers builds the partner API. secure marks the session
// cookie Secure; turn it off only for plain-HTTP development.
func NewPartnerHandlers(svc AffiliateService, sessions *SessionStore, secure bool) *PartnerHandlers {
	return &PartnerHandlers{svc: svc, sessions: sessions, secure: secure}
}

// Routes returns the router to mount under /api/partner.
func (h *PartnerHandlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requirePartner)
		r.Get("/stats", h.GetStats)
		r.Get("/orders", h.ListOrders)
		r.Get("/clicks", h.ListClicks)
		r.Get("/payouts", h.ListPayouts)
		r.Get("/links", h.GetLinks)
	})
	return r
}

func (h *PartnerHandlers) requirePartner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(partnerCookie)
		if err != nil {
			httputil.Unauthorized(w, "login required")
			return
		}
		id, ok := h.sessions.Lookup(c.Value)
		if !ok {
			httputil.Unauthorized(w, "login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), partnerKey{}, id)))
	})
}

func partnerID(r *http.Request) string {
	id, _ := r.Context().Value(partnerKey{}).(string)
	return id
}

type loginRequest struct {
	RefCode string `json:"ref_code"`
}

func (h *PartnerHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	a, err := h.svc.GetByRefCode(ctx, strings.ToLower(strings.TrimSpace(req.RefCode)))
	if errors.Is(err, affiliate.ErrNotFound) || (err == nil && !a.IsActive()) {
		httputil.Unauthorized(w, "invalid or inactive referral code")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	token, expires := h.sessions.Create(a.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     partnerCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(partnerSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Info("partner logged in", "affiliate_id", a.ID)

	summary, err := h.svc.Summary(ctx, a.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, summary)
}

func (h *PartnerHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(partnerCookie); err == nil {
		h.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     partnerCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.Status(w, "Logged out")
}

func (h *PartnerHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context(), partnerID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, summary)
}

func (h *PartnerHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context(), affiliate.OrderFilter{
		AffiliateID: partnerID(r),
		Status:      domain.OrderStatus(r.URL.Query().Get("status")),
		Limit:       parseLimit(r, 50, 1000),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.ReferralOrder{}
	}
	httputil.OK(w, orders)
}

func (h *PartnerHandlers) ListClicks(w http.ResponseWriter, r *http.Request) {
	clicks, err := h.svc.ListClicks(r.Context(), partnerID(r), parseLimit(r, 100, 1000))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if clicks == nil {
		clicks = []domain.Click{}
	}
	httputil.OK(w, clicks)
}

func (h *PartnerHandlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.svc.ListPayouts(r.Context(), partnerID(r), parseLimit(r, 100, 1000))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	httputil.OK(w, payouts)
}

// linksResponse lists the URLs a partner can share.
type linksResponse struct {
	RefCode   string `json:"ref_code"`
	ShortCode string `json:"short_code"`
	ShortURL  string `json:"short_url"`
	DirectURL string `json:"direct_url"`
	// ProductURL is set when the path query names a storefront page.
	ProductURL string `json:"product_url,omitempty"`
}

func (h *PartnerHandlers) GetLinks(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAffiliate(r.Context(), partnerID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := linksResponse{
		RefCode:   a.RefCode,
		ShortCode: a.ShortCode,
		ShortURL:  h.svc.ShortURL(a),
		DirectURL: h.svc.DirectURL(a, ""),
	}
	if p := r.URL.Query().Get("path"); p != "" {
		resp.ProductURL = h.svc.DirectURL(a, p)
	}
	httputil.OK(w, resp)
}

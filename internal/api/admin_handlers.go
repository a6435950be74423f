package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/httputil"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

// AffiliateService is the part of the affiliate program the back office uses.
type AffiliateService interface {
	CreateAffiliate(ctx context.Context, in affiliate.CreateInput) (*domain.Affiliate, error)
	GetAffiliate(ctx context.Context, id string) (*domain.Affiliate, error)
	GetByRefCode(ctx context.Context, refCode string) (*domain.Affiliate, error)
	ListAffiliates(ctx context.Context, filter affiliate.ListFilter) ([]domain.Affiliate, error)
	UpdateAffiliate(ctx context.Context, id string, in affiliate.UpdateInput) (*domain.Affiliate, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.ReferralOrder, error)
	CreatePayout(ctx context.Context, in affiliate.PayoutInput) (*domain.Payout, error)
	Summary(ctx context.Context, id string) (*domain.AffiliateSummary, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
	ListOrders(ctx context.Context, filter affiliate.OrderFilter) ([]domain.ReferralOrder, error)
	ListClicks(ctx context.Context, affiliateID string, limit int) ([]domain.Click, error)
	ListPayouts(ctx context.Context, affiliateID string, limit int) ([]domain.Payout, error)
	ShortURL(a *domain.Affiliate) string
	DirectURL(a *domain.Affiliate, path string) string
}

// ShortCodeInvalidator drops cached short code lookups.
type ShortCodeInvalidator interface {
	Invalidate(ctx context.Context, codes ...string) error
}

const adminRealm = "goyoulink admin"

// AdminHandlers serves the back office API.
type AdminHandlers struct {
	svc      AffiliateService
	cache    ShortCodeInvalidator
	username string
	password string
}

// NewAdminHandlers builds the admin API. cache may be nil.
func NewAdminHandlers(svc AffiliateService, cache ShortCodeInvalidator, username, password string) *AdminHandlers {
	return &AdminHandlers{svc: svc, cache: cache, username: username, password: password}
}

// Routes returns the router to mount under /api/admin.
func (h *AdminHandlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.BasicAuth(adminRealm, map[string]string{h.username: h.password}))

	r.Get("/stats", h.GetStats)
	r.Route("/affiliates", func(r chi.Router) {
		r.Get("/", h.ListAffiliates)
		r.Post("/", h.CreateAffiliate)
		r.Get("/{id}", h.GetAffiliate)
		r.Put("/{id}", h.UpdateAffiliate)
	})
	r.Get("/orders", h.ListOrders)
	r.Post("/orders/{id}/status", h.UpdateOrderStatus)
	r.Get("/payouts", h.ListPayouts)
	r.Post("/payouts", h.CreatePayout)
	return r
}

func (h *AdminHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DashboardStats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func (h *AdminHandlers) ListAffiliates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListAffiliates(r.Context(), affiliate.ListFilter{
		Status: domain.AffiliateStatus(q.Get("status")),
		Type:   domain.AffiliateType(q.Get("type")),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.Affiliate{}
	}
	httputil.OK(w, list)
}

func (h *AdminHandlers) CreateAffiliate(w http.ResponseWriter, r *http.Request) {
	var in affiliate.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	a, err := h.svc.CreateAffiliate(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, a)
}

// affiliateDetail is the admin view of one affiliate.
type affiliateDetail struct {
	*domain.AffiliateSummary
	RecentOrders []domain.ReferralOrder `json:"recent_orders"`
	RecentClicks []domain.Click         `json:"recent_clicks"`
}

func (h *AdminHandlers) GetAffiliate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	summary, err := h.svc.Summary(ctx, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	orders, err := h.svc.ListOrders(ctx, affiliate.OrderFilter{AffiliateID: id, Limit: 10})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	clicks, err := h.svc.ListClicks(ctx, id, 10)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.ReferralOrder{}
	}
	if clicks == nil {
		clicks = []domain.Click{}
	}
	httputil.OK(w, affiliateDetail{AffiliateSummary: summary, RecentOrders: orders, RecentClicks: clicks})
}

func (h *AdminHandlers) UpdateAffiliate(w http.ResponseWriter, r *http.Request) {
	var in affiliate.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	a, err := h.svc.UpdateAffiliate(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Redirects must see status changes right away.
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), a.ShortCode); err != nil {
			logger.Warn("short code cache invalidation failed", "short_code", a.ShortCode, "error", err)
		}
	}
	httputil.OK(w, a)
}

func (h *AdminHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.svc.ListOrders(r.Context(), affiliate.OrderFilter{
		AffiliateID: q.Get("affiliate_id"),
		Status:      domain.OrderStatus(q.Get("status")),
		Limit:       parseLimit(r, 100, 1000),
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

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *AdminHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	o, err := h.svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, o)
}

func (h *AdminHandlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.svc.ListPayouts(r.Context(), r.URL.Query().Get("affiliate_id"), parseLimit(r, 100, 1000))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	httputil.OK(w, payouts)
}

func (h *AdminHandlers) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var in affiliate.PayoutInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	p, err := h.svc.CreatePayout(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, p)
}

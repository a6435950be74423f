package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/httputil"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

const maxWebhookBody = 1 << 20

// OrderService is what the webhooks need from the affiliate program.
type OrderService interface {
	RefCodeLookup
	GetOrderByShopifyID(ctx context.Context, shopifyOrderID string) (*domain.ReferralOrder, error)
	CreateReferralOrder(ctx context.Context, a *domain.Affiliate, in affiliate.OrderInput) (*domain.ReferralOrder, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.ReferralOrder, error)
}

// Handler serves the Shopify webhook endpoints.
type Handler struct {
	svc    OrderService
	secret string
}

// NewHandler builds the webhook handler. An empty secret disables
// signature checks.
func NewHandler(svc OrderService, secret string) *Handler {
	if secret == "" {
		logger.Warn("SHOPIFY_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}
	return &Handler{svc: svc, secret: secret}
}

// Routes returns the router to mount under /webhook.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/shopify/orders/create", h.HandleOrderCreate)
	r.Post("/shopify/orders/fulfilled", h.HandleOrderFulfilled)
	r.Post("/shopify/orders/cancelled", h.HandleOrderCancelled)
	r.Post("/shopify/refunds/create", h.HandleRefundCreate)
	r.Get("/test", h.HandleTest)
	r.Post("/test", h.HandleTest)
	return r
}

// readVerified reads the body, checks its signature and decodes it into
// dst. It writes the error response itself and reports whether to go on.
func (h *Handler) readVerified(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "No data")
		return false
	}
	if !VerifySignature(h.secret, body, r.Header.Get(HeaderHMAC)) {
		logger.Warn("webhook signature mismatch", "path", r.URL.Path)
		httputil.Unauthorized(w, "Invalid signature")
		return false
	}
	if len(body) == 0 || json.Unmarshal(body, dst) != nil {
		httputil.BadRequest(w, "No data")
		return false
	}
	return true
}

func (h *Handler) HandleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var o Order
	if !h.readVerified(w, r, &o) {
		return
	}
	ctx := r.Context()

	code := ExtractRefCode(ctx, &o, h.svc)
	if code == "" {
		httputil.Status(w, "No referral code")
		return
	}

	a, err := h.svc.GetByRefCode(ctx, code)
	if errors.Is(err, affiliate.ErrNotFound) {
		httputil.Status(w, "Invalid referral code")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !a.IsActive() {
		httputil.Status(w, "Affiliate inactive")
		return
	}

	order, err := h.svc.CreateReferralOrder(ctx, a, affiliate.OrderInput{
		ShopifyOrderID: string(o.ID),
		OrderNumber:    o.Name,
		OrderTotal:     o.TotalPrice.Float(),
		Currency:       o.Currency,
		CustomerEmail:  o.Email,
		OrderCreatedAt: o.CreatedTime(),
	})
	switch {
	case errors.Is(err, affiliate.ErrDuplicateOrder):
		httputil.Status(w, "Order already exists")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, httputil.StatusResponse{Status: "ok", Message: "Referral order created", OrderID: order.ID})
}

func (h *Handler) HandleOrderFulfilled(w http.ResponseWriter, r *http.Request) {
	var o Order
	if !h.readVerified(w, r, &o) {
		return
	}
	existing, ok := h.lookup(w, r, string(o.ID))
	if !ok {
		return
	}
	if existing == nil || existing.Status != domain.OrderPending {
		httputil.Status(w, "No action needed")
		return
	}
	if _, err := h.svc.UpdateOrderStatus(r.Context(), existing.ID, domain.OrderConfirmed); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Status(w, "Order confirmed")
}

func (h *Handler) HandleOrderCancelled(w http.ResponseWriter, r *http.Request) {
	var o Order
	if !h.readVerified(w, r, &o) {
		return
	}
	h.transition(w, r, string(o.ID), domain.OrderCancelled, "Order cancelled")
}

func (h *Handler) HandleRefundCreate(w http.ResponseWriter, r *http.Request) {
	var rf Refund
	if !h.readVerified(w, r, &rf) {
		return
	}
	h.transition(w, r, string(rf.OrderID), domain.OrderRefunded, "Order refunded")
}

func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	httputil.Status(w, "Webhook endpoint is working")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, shopifyOrderID string, status domain.OrderStatus, message string) {
	existing, ok := h.lookup(w, r, shopifyOrderID)
	if !ok {
		return
	}
	if existing == nil {
		httputil.Status(w, "No action needed")
		return
	}
	if _, err := h.svc.UpdateOrderStatus(r.Context(), existing.ID, status); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Status(w, message)
}

// lookup returns the referral order for a Shopify order, or nil when the
// order was never attributed.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, shopifyOrderID string) (*domain.ReferralOrder, bool) {
	o, err := h.svc.GetOrderByShopifyID(r.Context(), shopifyOrderID)
	if errors.Is(err, affiliate.ErrOrderNotFound) {
		return nil, true
	}
	if err != nil {
		httputil.InternalError(w, err)
		return nil, false
	}
	return o, true
}

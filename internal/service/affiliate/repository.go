package affiliate

import (
	"context"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/domain"
)

// AffiliateStore is the data access contract for affiliate rows.
type AffiliateStore interface {
	// Create inserts a. ErrDuplicateRefCode or ErrDuplicateShortCode is
	// returned when a code is taken.
	Create(ctx context.Context, a *domain.Affiliate) error

	// Get, GetByRefCode and GetByShortCode return ErrNotFound when no row matches.
	Get(ctx context.Context, id string) (*domain.Affiliate, error)
	GetByRefCode(ctx context.Context, refCode string) (*domain.Affiliate, error)
	GetByShortCode(ctx context.Context, shortCode string) (*domain.Affiliate, error)

	List(ctx context.Context, filter ListFilter) ([]domain.Affiliate, error)

	// Update writes the editable profile fields of a.
	Update(ctx context.Context, a *domain.Affiliate) error

	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
}

// ClickStore persists short link visits.
type ClickStore interface {
	// InsertClick stores c and bumps the affiliate's click count in one
	// transaction. A click whose ID is already stored is skipped.
	InsertClick(ctx context.Context, c *domain.Click) error
	ListClicks(ctx context.Context, affiliateID string, limit int) ([]domain.Click, error)
}

// OrderStore persists referral orders.
type OrderStore interface {
	// InsertOrder stores o and adds it to the affiliate's order and sales
	// totals in one transaction. ErrDuplicateOrder is returned when the
	// Shopify order ID exists.
	InsertOrder(ctx context.Context, o *domain.ReferralOrder) error

	// GetOrder and GetOrderByShopifyID return ErrOrderNotFound when no row matches.
	GetOrder(ctx context.Context, id string) (*domain.ReferralOrder, error)
	GetOrderByShopifyID(ctx context.Context, shopifyOrderID string) (*domain.ReferralOrder, error)

	// TransitionOrder applies t in one transaction. It reports false and
	// changes nothing when the order is no longer in t.From.
	TransitionOrder(ctx context.Context, t OrderTransition) (bool, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.ReferralOrder, error)
	CountOrders(ctx context.Context, affiliateID string, status domain.OrderStatus) (int, error)
}

// PayoutStore persists commission payouts.
type PayoutStore interface {
	// InsertPayout stores p and moves its amount from pending to paid
	// commission in one transaction.
	InsertPayout(ctx context.Context, p *domain.Payout) error
	ListPayouts(ctx context.Context, affiliateID string, limit int) ([]domain.Payout, error)
}

// Repository is everything the service needs from storage.
type Repository interface {
	AffiliateStore
	ClickStore
	OrderStore
	PayoutStore
}

// ListFilter narrows affiliate listings.
type ListFilter struct {
	Status domain.AffiliateStatus
	Type   domain.AffiliateType
}

// OrderFilter narrows order listings. An empty AffiliateID lists every
// affiliate's orders.
type OrderFilter struct {
	AffiliateID string
	Status      domain.OrderStatus
	Limit       int
}

// OrderTransition is a compare-and-set on an order's status together with
// the commission settlement it triggers.
type OrderTransition struct {
	OrderID     string
	AffiliateID string
	From        domain.OrderStatus
	To          domain.OrderStatus
	ConfirmedAt *time.Time
	Totals      domain.TotalsDelta
}

package domain

import (
	"math"
	"time"
)

// OrderStatus tracks a referral order from checkout to payout.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPaid      OrderStatus = "paid"
	OrderRefunded  OrderStatus = "refunded"
	OrderCancelled OrderStatus = "cancelled"
)

// IsValid reports whether s is one of the known order statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPaid, OrderRefunded, OrderCancelled:
		return true
	}
	return false
}

// DefaultCurrency is used when a webhook omits the order currency.
const DefaultCurrency = "JPY"

// ReferralOrder is a storefront order attributed to an affiliate.
type ReferralOrder struct {
	ID               string      `json:"id" db:"id"`
	AffiliateID      string      `json:"affiliate_id" db:"affiliate_id"`
	ShopifyOrderID   string      `json:"shopify_order_id" db:"shopify_order_id"`
	OrderNumber      string      `json:"order_number" db:"order_number"`
	OrderTotal       float64     `json:"order_total" db:"order_total"`
	Currency         string      `json:"currency" db:"currency"`
	CommissionRate   float64     `json:"commission_rate" db:"commission_rate"`
	CommissionAmount float64     `json:"commission_amount" db:"commission_amount"`
	CustomerEmail    string      `json:"customer_email,omitempty" db:"customer_email"`
	Status           OrderStatus `json:"status" db:"status"`
	OrderCreatedAt   *time.Time  `json:"order_created_at,omitempty" db:"order_created_at"`
	ConfirmedAt      *time.Time  `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`

	// Populated by listings that join the affiliate.
	AffiliateName    string `json:"affiliate_name,omitempty" db:"-"`
	AffiliateRefCode string `json:"affiliate_ref_code,omitempty" db:"-"`
}

// Commission returns total * ratePercent / 100 rounded to two decimals.
func Commission(total, ratePercent float64) float64 {
	return math.Round(total*ratePercent) / 100
}

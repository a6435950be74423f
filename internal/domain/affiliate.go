package domain

import "time"

// AffiliateType distinguishes resellers from social media partners.
type AffiliateType string

const (
	TypeAffiliate  AffiliateType = "affiliate"
	TypeInfluencer AffiliateType = "influencer"
)

// IsValid reports whether t is a known affiliate type.
func (t AffiliateType) IsValid() bool {
	return t == TypeAffiliate || t == TypeInfluencer
}

// AffiliateStatus controls whether an affiliate's links attribute orders.
type AffiliateStatus string

const (
	AffiliateActive   AffiliateStatus = "active"
	AffiliateInactive AffiliateStatus = "inactive"
)

// IsValid reports whether s is a known affiliate status.
func (s AffiliateStatus) IsValid() bool {
	return s == AffiliateActive || s == AffiliateInactive
}

// Affiliate is a partner who earns commission on orders they refer.
type Affiliate struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Email          string          `json:"email,omitempty" db:"email"`
	Domain         string          `json:"domain,omitempty" db:"domain"`
	Type           AffiliateType   `json:"affiliate_type" db:"affiliate_type"`
	Facebook       string          `json:"facebook_url,omitempty" db:"facebook_url"`
	Instagram      string          `json:"instagram_url,omitempty" db:"instagram_url"`
	Threads        string          `json:"threads_url,omitempty" db:"threads_url"`
	YouTube        string          `json:"youtube_url,omitempty" db:"youtube_url"`
	TikTok         string          `json:"tiktok_url,omitempty" db:"tiktok_url"`
	RefCode        string          `json:"ref_code" db:"ref_code"`
	ShortCode      string          `json:"short_code" db:"short_code"`
	CommissionRate float64         `json:"commission_rate" db:"commission_rate"`
	Status         AffiliateStatus `json:"status" db:"status"`

	TotalClicks       int     `json:"total_clicks" db:"total_clicks"`
	TotalOrders       int     `json:"total_orders" db:"total_orders"`
	TotalSales        float64 `json:"total_sales" db:"total_sales"`
	TotalCommission   float64 `json:"total_commission" db:"total_commission"`
	PendingCommission float64 `json:"pending_commission" db:"pending_commission"`
	PaidCommission    float64 `json:"paid_commission" db:"paid_commission"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the affiliate currently attributes traffic.
func (a *Affiliate) IsActive() bool {
	return a != nil && a.Status == AffiliateActive
}

// TotalsDelta is an increment applied to an affiliate's running totals.
// Pending commission never drops below zero.
type TotalsDelta struct {
	Clicks            int
	Orders            int
	Sales             float64
	Commission        float64
	PendingCommission float64
	PaidCommission    float64
}

// IsZero reports whether applying d would change nothing.
func (d TotalsDelta) IsZero() bool {
	return d == TotalsDelta{}
}

package domain

import "time"

// Click is one visit through an affiliate's short link.
type Click struct {
	ID          string    `json:"id" db:"id"`
	AffiliateID string    `json:"affiliate_id" db:"affiliate_id"`
	IPAddress   string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty" db:"user_agent"`
	Referer     string    `json:"referer,omitempty" db:"referer"`
	LandedURL   string    `json:"landed_url,omitempty" db:"landed_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

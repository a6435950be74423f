package domain

import "time"

// PayoutStatus is the state of a commission payout.
type PayoutStatus string

const PayoutCompleted PayoutStatus = "completed"

// Payout is commission paid out to an affiliate.
type Payout struct {
	ID             string       `json:"id" db:"id"`
	AffiliateID    string       `json:"affiliate_id" db:"affiliate_id"`
	Amount         float64      `json:"amount" db:"amount"`
	Currency       string       `json:"currency" db:"currency"`
	PaymentMethod  string       `json:"payment_method,omitempty" db:"payment_method"`
	PaymentDetails string       `json:"payment_details,omitempty" db:"payment_details"`
	Note           string       `json:"note,omitempty" db:"note"`
	Status         PayoutStatus `json:"status" db:"status"`
	PaidAt         time.Time    `json:"paid_at" db:"paid_at"`

	AffiliateName    string `json:"affiliate_name,omitempty" db:"-"`
	AffiliateRefCode string `json:"affiliate_ref_code,omitempty" db:"-"`
}

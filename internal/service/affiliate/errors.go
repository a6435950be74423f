package affiliate

import "errors"

// Sentinel errors for the affiliate service layer.
var (
	ErrNotFound           = errors.New("affiliate not found")
	ErrOrderNotFound      = errors.New("referral order not found")
	ErrNameRequired       = errors.New("affiliate name is required")
	ErrInvalidType        = errors.New("invalid affiliate type")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidRate        = errors.New("commission rate must be between 0 and 100")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInactive           = errors.New("affiliate is inactive")
	ErrDuplicateRefCode   = errors.New("ref code already in use")
	ErrDuplicateShortCode = errors.New("short code already in use")
	ErrDuplicateOrder     = errors.New("order already recorded")
	ErrPayoutInProgress   = errors.New("another payout for this affiliate is in progress")
	ErrOrderConflict      = errors.New("referral order is being updated concurrently")
)

package postgres

import "database/sql"

// Store bundles the affiliate program repositories into one
// affiliate.Repository.
type Store struct {
	*AffiliateRepo
	*ClickRepo
	*OrderRepo
	*PayoutRepo
}

// NewStore creates every affiliate program repository over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		AffiliateRepo: NewAffiliateRepo(db),
		ClickRepo:     NewClickRepo(db),
		OrderRepo:     NewOrderRepo(db),
		PayoutRepo:    NewPayoutRepo(db),
	}
}

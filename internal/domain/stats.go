package domain

// DashboardStats aggregates the back office overview.
type DashboardStats struct {
	TotalAffiliates   int     `json:"total_affiliates"`
	TotalOrders       int     `json:"total_orders"`
	PendingOrders     int     `json:"pending_orders"`
	TotalSales        float64 `json:"total_sales"`
	TotalCommission   float64 `json:"total_commission"`
	PendingCommission float64 `json:"pending_commission"`
}

// AffiliateSummary is what an affiliate sees on their dashboard.
type AffiliateSummary struct {
	Affiliate           *Affiliate `json:"affiliate"`
	PendingOrdersCount  int        `json:"pending_orders_count"`
	ConfirmedOrderCount int        `json:"confirmed_orders_count"`
	ShortURL            string     `json:"short_url"`
	DirectURL           string     `json:"direct_url"`
	PayoutEligible      bool       `json:"payout_eligible"`
	MinPayout           float64    `json:"min_payout"`
}

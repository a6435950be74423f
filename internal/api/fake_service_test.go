package api

import (
	"context"
	"sort"

	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

// fakeService is an in-memory AffiliateService that records the filters it
// was called with.
type fakeService struct {
	affiliates map[string]*domain.Affiliate
	orders     []domain.ReferralOrder
	clicks     []domain.Click
	payouts    []domain.Payout

	lastOrderFilter affiliate.OrderFilter
	lastListFilter  affiliate.ListFilter
	lastLimit       int
	err             error
}

func newFakeService() *fakeService {
	return &fakeService{
		affiliates: map[string]*domain.Affiliate{
			"aff-1": {ID: "aff-1", Name: "Tokyo Shopper", RefCode: "tokyo01", ShortCode: "tk01ab",
				Status: domain.AffiliateActive, CommissionRate: 10, PendingCommission: 25000},
			"aff-2": {ID: "aff-2", Name: "Sleepy", RefCode: "sleepy", ShortCode: "zz9999",
				Status: domain.AffiliateInactive},
		},
		orders: []domain.ReferralOrder{
			{ID: "ord-1", AffiliateID: "aff-1", Status: domain.OrderPending, OrderTotal: 12800},
			{ID: "ord-2", AffiliateID: "aff-2", Status: domain.OrderConfirmed, OrderTotal: 5000},
		},
		clicks:  []domain.Click{{ID: "clk-1", AffiliateID: "aff-1"}},
		payouts: []domain.Payout{{ID: "pay-1", AffiliateID: "aff-1", Amount: 20000}},
	}
}

func (f *fakeService) CreateAffiliate(_ context.Context, in affiliate.CreateInput) (*domain.Affiliate, error) {
	if in.Name == "" {
		return nil, affiliate.ErrNameRequired
	}
	if in.RefCode == "tokyo01" {
		return nil, affiliate.ErrDuplicateRefCode
	}
	a := &domain.Affiliate{ID: "aff-new", Name: in.Name, RefCode: in.RefCode, ShortCode: "new001", Status: domain.AffiliateActive}
	f.affiliates[a.ID] = a
	return a, nil
}

func (f *fakeService) GetAffiliate(_ context.Context, id string) (*domain.Affiliate, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.affiliates[id]
	if !ok {
		return nil, affiliate.ErrNotFound
	}
	return a, nil
}

func (f *fakeService) GetByRefCode(_ context.Context, code string) (*domain.Affiliate, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.affiliates {
		if a.RefCode == code {
			return a, nil
		}
	}
	return nil, affiliate.ErrNotFound
}

func (f *fakeService) ListAffiliates(_ context.Context, filter affiliate.ListFilter) ([]domain.Affiliate, error) {
	f.lastListFilter = filter
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, affiliate.ErrInvalidStatus
	}
	var out []domain.Affiliate
	for _, a := range f.affiliates {
		if filter.Status == "" || a.Status == filter.Status {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeService) UpdateAffiliate(ctx context.Context, id string, in affiliate.UpdateInput) (*domain.Affiliate, error) {
	a, err := f.GetAffiliate(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, affiliate.ErrInvalidStatus
		}
		a.Status = *in.Status
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	return a, nil
}

func (f *fakeService) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.ReferralOrder, error) {
	if !status.IsValid() {
		return nil, affiliate.ErrInvalidStatus
	}
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			o := f.orders[i]
			return &o, nil
		}
	}
	return nil, affiliate.ErrOrderNotFound
}

func (f *fakeService) CreatePayout(ctx context.Context, in affiliate.PayoutInput) (*domain.Payout, error) {
	if in.Amount <= 0 {
		return nil, affiliate.ErrInvalidAmount
	}
	if _, err := f.GetAffiliate(ctx, in.AffiliateID); err != nil {
		return nil, err
	}
	p := domain.Payout{ID: "pay-new", AffiliateID: in.AffiliateID, Amount: in.Amount, Status: domain.PayoutCompleted}
	f.payouts = append(f.payouts, p)
	return &p, nil
}

func (f *fakeService) Summary(ctx context.Context, id string) (*domain.AffiliateSummary, error) {
	a, err := f.GetAffiliate(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.AffiliateSummary{
		Affiliate:      a,
		ShortURL:       f.ShortURL(a),
		DirectURL:      f.DirectURL(a, ""),
		PayoutEligible: a.PendingCommission >= 20000,
		MinPayout:      20000,
	}, nil
}

func (f *fakeService) DashboardStats(context.Context) (*domain.DashboardStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DashboardStats{TotalAffiliates: len(f.affiliates), TotalOrders: len(f.orders)}, nil
}

func (f *fakeService) ListOrders(_ context.Context, filter affiliate.OrderFilter) ([]domain.ReferralOrder, error) {
	f.lastOrderFilter = filter
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, affiliate.ErrInvalidStatus
	}
	var out []domain.ReferralOrder
	for _, o := range f.orders {
		if filter.AffiliateID != "" && o.AffiliateID != filter.AffiliateID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeService) ListClicks(_ context.Context, affiliateID string, limit int) ([]domain.Click, error) {
	f.lastLimit = limit
	var out []domain.Click
	for _, c := range f.clicks {
		if c.AffiliateID == affiliateID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeService) ListPayouts(_ context.Context, affiliateID string, limit int) ([]domain.Payout, error) {
	f.lastLimit = limit
	var out []domain.Payout
	for _, p := range f.payouts {
		if affiliateID == "" || p.AffiliateID == affiliateID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeService) ShortURL(a *domain.Affiliate) string {
	return "https://go.goyoulink.com/" + a.ShortCode
}

func (f *fakeService) DirectURL(a *domain.Affiliate, path string) string {
	return affiliate.RedirectURL("https://goyoutati.com", path, a.RefCode)
}

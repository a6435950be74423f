package affiliate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/distlock"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
)

const (
	refCodeLength   = 8
	shortCodeLength = 6
	defaultLimit    = 100
	maxCodeAttempts = 5

	maxTransitionAttempts = 3
)

// Settings are the program-wide knobs of the affiliate program.
type Settings struct {
	DefaultCommissionRate float64
	MinPayout             float64
	ShortURLDomain        string
	RedirectTarget        string
}

// Service implements affiliate business logic. It is safe for concurrent use.
type Service struct {
	repo     Repository
	settings Settings
	locks    distlock.Factory
	now      func() time.Time
	newCode  func(n int) string
}

// Option customizes a Service.
type Option func(*Service)

// WithLocks serializes payouts per affiliate through f.
func WithLocks(f distlock.Factory) Option {
	return func(s *Service) { s.locks = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(gen func(n int) string) Option {
	return func(s *Service) { s.newCode = gen }
}

// NewService creates an affiliate service backed by the given repository.
func NewService(repo Repository, settings Settings, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		settings: settings,
		now:      time.Now,
		newCode:  randomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the program settings the service was built with.
func (s *Service) Settings() Settings { return s.settings }

// CreateInput carries the fields of a new affiliate. Empty codes are
// generated; a nil CommissionRate takes the program default.
type CreateInput struct {
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Domain         string               `json:"domain"`
	Type           domain.AffiliateType `json:"affiliate_type"`
	Facebook       string               `json:"facebook_url"`
	Instagram      string               `json:"instagram_url"`
	Threads        string               `json:"threads_url"`
	YouTube        string               `json:"youtube_url"`
	TikTok         string               `json:"tiktok_url"`
	RefCode        string               `json:"ref_code"`
	CommissionRate *float64             `json:"commission_rate"`
}

// CreateAffiliate registers a new active affiliate.
func (s *Service) CreateAffiliate(ctx context.Context, in CreateInput) (*domain.Affiliate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	typ := in.Type
	if typ == "" {
		typ = domain.TypeAffiliate
	}
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}

	rate := s.settings.DefaultCommissionRate
	if in.CommissionRate != nil {
		rate = *in.CommissionRate
	}
	if rate < 0 || rate > 100 {
		return nil, ErrInvalidRate
	}

	refCode := normalizeCode(in.RefCode)
	generatedRef := refCode == ""
	if generatedRef {
		refCode = s.newCode(refCodeLength)
	}

	a := &domain.Affiliate{
		Name:           name,
		Email:          strings.TrimSpace(in.Email),
		Domain:         strings.TrimSpace(in.Domain),
		Type:           typ,
		Facebook:       strings.TrimSpace(in.Facebook),
		Instagram:      strings.TrimSpace(in.Instagram),
		Threads:        strings.TrimSpace(in.Threads),
		YouTube:        strings.TrimSpace(in.YouTube),
		TikTok:         strings.TrimSpace(in.TikTok),
		RefCode:        refCode,
		ShortCode:      s.newCode(shortCodeLength),
		CommissionRate: rate,
		Status:         domain.AffiliateActive,
	}

	for attempt := 1; ; attempt++ {
		err := s.repo.Create(ctx, a)
		if err == nil {
			logger.Info("affiliate created", "affiliate_id", a.ID, "ref_code", a.RefCode, "email", a.Email)
			return a, nil
		}
		if attempt >= maxCodeAttempts {
			return nil, err
		}
		switch {
		case errors.Is(err, ErrDuplicateShortCode):
			a.ShortCode = s.newCode(shortCodeLength)
		case errors.Is(err, ErrDuplicateRefCode) && generatedRef:
			a.RefCode = s.newCode(refCodeLength)
		default:
			return nil, err
		}
	}
}

// GetAffiliate returns the affiliate with the given ID.
func (s *Service) GetAffiliate(ctx context.Context, id string) (*domain.Affiliate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// GetByRefCode looks up an affiliate by ref code, ignoring case and
// surrounding whitespace.
func (s *Service) GetByRefCode(ctx context.Context, refCode string) (*domain.Affiliate, error) {
	code := normalizeCode(refCode)
	if code == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByRefCode(ctx, code)
}

// GetByShortCode looks up an affiliate by short link code.
func (s *Service) GetByShortCode(ctx context.Context, shortCode string) (*domain.Affiliate, error) {
	code := normalizeCode(shortCode)
	if code == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByShortCode(ctx, code)
}

// ListAffiliates returns affiliates matching filter, newest first.
func (s *Service) ListAffiliates(ctx context.Context, filter ListFilter) ([]domain.Affiliate, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, ErrInvalidType
	}
	return s.repo.List(ctx, filter)
}

// UpdateInput is a partial update; nil fields are left alone.
type UpdateInput struct {
	Name           *string                 `json:"name"`
	Email          *string                 `json:"email"`
	Domain         *string                 `json:"domain"`
	Type           *domain.AffiliateType   `json:"affiliate_type"`
	Facebook       *string                 `json:"facebook_url"`
	Instagram      *string                 `json:"instagram_url"`
	Threads        *string                 `json:"threads_url"`
	YouTube        *string                 `json:"youtube_url"`
	TikTok         *string                 `json:"tiktok_url"`
	CommissionRate *float64                `json:"commission_rate"`
	Status         *domain.AffiliateStatus `json:"status"`
}

// UpdateAffiliate applies in to the affiliate's profile. Commission rate
// changes only affect orders recorded afterwards.
func (s *Service) UpdateAffiliate(ctx context.Context, id string, in UpdateInput) (*domain.Affiliate, error) {
	a, err := s.GetAffiliate(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		a.Name = name
	}
	if in.Type != nil {
		if !in.Type.IsValid() {
			return nil, ErrInvalidType
		}
		a.Type = *in.Type
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		a.Status = *in.Status
	}
	if in.CommissionRate != nil {
		if *in.CommissionRate < 0 || *in.CommissionRate > 100 {
			return nil, ErrInvalidRate
		}
		a.CommissionRate = *in.CommissionRate
	}
	setTrimmed(&a.Email, in.Email)
	setTrimmed(&a.Domain, in.Domain)
	setTrimmed(&a.Facebook, in.Facebook)
	setTrimmed(&a.Instagram, in.Instagram)
	setTrimmed(&a.Threads, in.Threads)
	setTrimmed(&a.YouTube, in.YouTube)
	setTrimmed(&a.TikTok, in.TikTok)

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update affiliate %s: %w", id, err)
	}
	return a, nil
}

// RecordClick stores a short link visit and bumps the affiliate's click count.
func (s *Service) RecordClick(ctx context.Context, affiliateID string, c *domain.Click) error {
	if affiliateID == "" {
		return ErrNotFound
	}
	c.AffiliateID = affiliateID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if err := s.repo.InsertClick(ctx, c); err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	return nil
}

// OrderInput is a storefront order to attribute.
type OrderInput struct {
	ShopifyOrderID string
	OrderNumber    string
	OrderTotal     float64
	Currency       string
	CustomerEmail  string
	OrderCreatedAt *time.Time
}

// CreateReferralOrder records a pending order for a. The commission rate is
// snapshotted from the affiliate; commission is only credited on confirmation.
func (s *Service) CreateReferralOrder(ctx context.Context, a *domain.Affiliate, in OrderInput) (*domain.ReferralOrder, error) {
	if a == nil {
		return nil, ErrNotFound
	}
	if !a.IsActive() {
		return nil, ErrInactive
	}
	if in.ShopifyOrderID == "" {
		return nil, fmt.Errorf("shopify order id is required")
	}
	if in.OrderTotal < 0 {
		return nil, ErrInvalidAmount
	}

	existing, err := s.repo.GetOrderByShopifyID(ctx, in.ShopifyOrderID)
	if err == nil && existing != nil {
		return existing, ErrDuplicateOrder
	}
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, fmt.Errorf("check order %s: %w", in.ShopifyOrderID, err)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	o := &domain.ReferralOrder{
		AffiliateID:      a.ID,
		ShopifyOrderID:   in.ShopifyOrderID,
		OrderNumber:      in.OrderNumber,
		OrderTotal:       in.OrderTotal,
		Currency:         currency,
		CommissionRate:   a.CommissionRate,
		CommissionAmount: domain.Commission(in.OrderTotal, a.CommissionRate),
		CustomerEmail:    in.CustomerEmail,
		Status:           domain.OrderPending,
		OrderCreatedAt:   in.OrderCreatedAt,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.repo.InsertOrder(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			return nil, err
		}
		return nil, fmt.Errorf("insert order %s: %w", in.ShopifyOrderID, err)
	}

	logger.Info("referral order created",
		"order_id", o.ID, "affiliate_id", a.ID, "shopify_order_id", o.ShopifyOrderID,
		"total", o.OrderTotal, "commission", o.CommissionAmount)
	return o, nil
}

// GetOrder returns the referral order with the given ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.ReferralOrder, error) {
	if id == "" {
		return nil, ErrOrderNotFound
	}
	return s.repo.GetOrder(ctx, id)
}

// GetOrderByShopifyID returns the referral order for a Shopify order.
func (s *Service) GetOrderByShopifyID(ctx context.Context, shopifyOrderID string) (*domain.ReferralOrder, error) {
	if shopifyOrderID == "" {
		return nil, ErrOrderNotFound
	}
	return s.repo.GetOrderByShopifyID(ctx, shopifyOrderID)
}

// UpdateOrderStatus moves an order to status and settles the affiliate's
// commission buckets:
//   - confirmed credits the commission to total and pending, once
//   - refunded after confirmed takes it back out of pending and total
//
// The change is applied only if the order still has the status it was read
// with; a concurrent update makes it re-read and re-decide.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.ReferralOrder, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		prev := o.Status

		t := OrderTransition{
			OrderID:     o.ID,
			AffiliateID: o.AffiliateID,
			From:        prev,
			To:          status,
			ConfirmedAt: o.ConfirmedAt,
		}
		switch {
		case status == domain.OrderConfirmed && prev != domain.OrderConfirmed:
			now := s.now().UTC()
			t.ConfirmedAt = &now
			t.Totals = domain.TotalsDelta{Commission: o.CommissionAmount, PendingCommission: o.CommissionAmount}
		case status == domain.OrderRefunded && prev == domain.OrderConfirmed:
			t.Totals = domain.TotalsDelta{Commission: -o.CommissionAmount, PendingCommission: -o.CommissionAmount}
		}

		applied, err := s.repo.TransitionOrder(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("set order %s status: %w", o.ID, err)
		}
		if !applied {
			logger.Debug("referral order changed underneath, re-reading", "order_id", o.ID, "was", prev)
			continue
		}

		o.Status = status
		o.ConfirmedAt = t.ConfirmedAt
		logger.Info("referral order status changed", "order_id", o.ID, "from", prev, "to", status)
		return o, nil
	}
	return nil, ErrOrderConflict
}

// PayoutInput describes a commission payout.
type PayoutInput struct {
	AffiliateID    string  `json:"affiliate_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PaymentMethod  string  `json:"payment_method"`
	PaymentDetails string  `json:"payment_details"`
	Note           string  `json:"note"`
}

// CreatePayout records a completed payout and moves the amount from pending
// to paid commission. Payouts for one affiliate never run concurrently.
func (s *Service) CreatePayout(ctx context.Context, in PayoutInput) (*domain.Payout, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	a, err := s.GetAffiliate(ctx, in.AffiliateID)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	p := &domain.Payout{
		AffiliateID:    a.ID,
		Amount:         in.Amount,
		Currency:       currency,
		PaymentMethod:  strings.TrimSpace(in.PaymentMethod),
		PaymentDetails: strings.TrimSpace(in.PaymentDetails),
		Note:           strings.TrimSpace(in.Note),
		Status:         domain.PayoutCompleted,
		PaidAt:         s.now().UTC(),
	}

	record := func(ctx context.Context) error {
		if err := s.repo.InsertPayout(ctx, p); err != nil {
			return fmt.Errorf("record payout: %w", err)
		}
		return nil
	}

	if s.locks == nil {
		err = record(ctx)
	} else {
		err = distlock.WithLock(ctx, s.locks("payout:"+a.ID), record)
	}
	if errors.Is(err, distlock.ErrNotAcquired) {
		return nil, ErrPayoutInProgress
	}
	if err != nil {
		return nil, err
	}

	logger.Info("payout recorded", "payout_id", p.ID, "affiliate_id", a.ID, "amount", p.Amount)
	return p, nil
}

// Summary builds an affiliate's dashboard view.
func (s *Service) Summary(ctx context.Context, id string) (*domain.AffiliateSummary, error) {
	a, err := s.GetAffiliate(ctx, id)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.CountOrders(ctx, a.ID, domain.OrderPending)
	if err != nil {
		return nil, fmt.Errorf("count pending orders: %w", err)
	}
	confirmed, err := s.repo.CountOrders(ctx, a.ID, domain.OrderConfirmed)
	if err != nil {
		return nil, fmt.Errorf("count confirmed orders: %w", err)
	}

	return &domain.AffiliateSummary{
		Affiliate:           a,
		PendingOrdersCount:  pending,
		ConfirmedOrderCount: confirmed,
		ShortURL:            s.ShortURL(a),
		DirectURL:           s.DirectURL(a, ""),
		PayoutEligible:      a.PendingCommission >= s.settings.MinPayout,
		MinPayout:           s.settings.MinPayout,
	}, nil
}

// ShortURL is the affiliate's shareable short link.
func (s *Service) ShortURL(a *domain.Affiliate) string {
	return strings.TrimRight(s.settings.ShortURLDomain, "/") + "/" + a.ShortCode
}

// DirectURL is the storefront URL carrying a's ref code, optionally for a
// sub-path such as a product page.
func (s *Service) DirectURL(a *domain.Affiliate, path string) string {
	return RedirectURL(s.settings.RedirectTarget, path, a.RefCode)
}

// RedirectURL joins target and path and, when refCode is set, appends it as
// the ref query parameter.
func RedirectURL(target, path, refCode string) string {
	u := strings.TrimRight(target, "/")
	if p := strings.Trim(path, "/"); p != "" {
		u += "/" + p
	}
	if refCode == "" {
		return u
	}
	return u + "?ref=" + url.QueryEscape(refCode)
}

// DashboardStats returns the back office overview.
func (s *Service) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	return s.repo.DashboardStats(ctx)
}

// ListOrders returns orders matching filter, newest first.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.ReferralOrder, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.ListOrders(ctx, filter)
}

// ListClicks returns an affiliate's most recent clicks.
func (s *Service) ListClicks(ctx context.Context, affiliateID string, limit int) ([]domain.Click, error) {
	return s.repo.ListClicks(ctx, affiliateID, clampLimit(limit))
}

// ListPayouts returns payouts, newest first. An empty affiliateID lists all.
func (s *Service) ListPayouts(ctx context.Context, affiliateID string, limit int) ([]domain.Payout, error) {
	return s.repo.ListPayouts(ctx, affiliateID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// codeAlphabet leaves out characters that are easy to misread.
const codeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// randomCode draws n characters from a v4 UUID's random bytes. Bytes 6 and 8
// carry the version and variant bits and are skipped.
func randomCode(n int) string {
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		id := uuid.New()
		for i, c := range id {
			if i == 6 || i == 8 || b.Len() == n {
				continue
			}
			b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
		}
	}
	return b.String()
}

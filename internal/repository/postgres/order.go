package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

const orderColumns = `o.id, o.affiliate_id, o.shopify_order_id, COALESCE(o.order_number,''),
	o.order_total, o.currency, o.commission_rate, o.commission_amount,
	COALESCE(o.customer_email,''), o.status, o.order_created_at, o.confirmed_at, o.created_at`

// OrderRepo implements affiliate.OrderStore against PostgreSQL.
type OrderRepo struct{ db *sql.DB }

// NewOrderRepo creates a Postgres-backed referral order repository.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

func scanOrder(row rowScanner, extra ...interface{}) (*domain.ReferralOrder, error) {
	o := &domain.ReferralOrder{}
	var orderCreated, confirmed sql.NullTime
	dest := []interface{}{
		&o.ID, &o.AffiliateID, &o.ShopifyOrderID, &o.OrderNumber,
		&o.OrderTotal, &o.Currency, &o.CommissionRate, &o.CommissionAmount,
		&o.CustomerEmail, &o.Status, &orderCreated, &confirmed, &o.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if orderCreated.Valid {
		o.OrderCreatedAt = &orderCreated.Time
	}
	if confirmed.Valid {
		o.ConfirmedAt = &confirmed.Time
	}
	return o, nil
}

func (r *OrderRepo) InsertOrder(ctx context.Context, o *domain.ReferralOrder) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO referral_orders (id, affiliate_id, shopify_order_id, order_number,
			order_total, currency, commission_rate, commission_amount, customer_email,
			status, order_created_at, created_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8, NULLIF($9,''), $10, $11, $12)
	`, o.ID, o.AffiliateID, o.ShopifyOrderID, o.OrderNumber,
		o.OrderTotal, o.Currency, o.CommissionRate, o.CommissionAmount, o.CustomerEmail,
		o.Status, o.OrderCreatedAt, o.CreatedAt)
	if _, ok := uniqueViolation(err); ok {
		return affiliate.ErrDuplicateOrder
	}
	if err != nil {
		return fmt.Errorf("insert referral order: %w", err)
	}

	if err := addTotals(ctx, tx, o.AffiliateID, domain.TotalsDelta{Orders: 1, Sales: o.OrderTotal}); err != nil {
		return fmt.Errorf("count referral order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit referral order: %w", err)
	}
	return nil
}

func (r *OrderRepo) getBy(ctx context.Context, column, value string) (*domain.ReferralOrder, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM referral_orders o WHERE o.`+column+` = $1`, value))
	if err == sql.ErrNoRows {
		return nil, affiliate.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get referral order by %s: %w", column, err)
	}
	return o, nil
}

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (*domain.ReferralOrder, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, affiliate.ErrOrderNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *OrderRepo) GetOrderByShopifyID(ctx context.Context, shopifyOrderID string) (*domain.ReferralOrder, error) {
	return r.getBy(ctx, "shopify_order_id", shopifyOrderID)
}

func (r *OrderRepo) TransitionOrder(ctx context.Context, t affiliate.OrderTransition) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE referral_orders SET status = $2, confirmed_at = $3 WHERE id = $1 AND status = $4`,
		t.OrderID, t.To, t.ConfirmedAt, t.From,
	)
	if err != nil {
		return false, fmt.Errorf("set referral order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if !t.Totals.IsZero() {
		if err := addTotals(ctx, tx, t.AffiliateID, t.Totals); err != nil {
			return false, fmt.Errorf("settle referral order %s: %w", t.OrderID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit referral order %s: %w", t.OrderID, err)
	}
	return true, nil
}

func (r *OrderRepo) ListOrders(ctx context.Context, f affiliate.OrderFilter) ([]domain.ReferralOrder, error) {
	q := `SELECT ` + orderColumns + `, a.name, a.ref_code
		FROM referral_orders o JOIN affiliates a ON a.id = o.affiliate_id
		WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.AffiliateID != "" {
		q += fmt.Sprintf(" AND o.affiliate_id = $%d", idx)
		args = append(args, f.AffiliateID)
		idx++
	}
	if f.Status != "" {
		q += fmt.Sprintf(" AND o.status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list referral orders: %w", err)
	}
	defer rows.Close()

	var out []domain.ReferralOrder
	for rows.Next() {
		var name, ref string
		o, err := scanOrder(rows, &name, &ref)
		if err != nil {
			return nil, fmt.Errorf("scan referral order: %w", err)
		}
		o.AffiliateName, o.AffiliateRefCode = name, ref
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) CountOrders(ctx context.Context, affiliateID string, status domain.OrderStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referral_orders WHERE affiliate_id = $1 AND status = $2`,
		affiliateID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referral orders: %w", err)
	}
	return n, nil
}

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

const affiliateColumns = `id, name, COALESCE(email,''), COALESCE(domain,''), affiliate_type,
	COALESCE(facebook_url,''), COALESCE(instagram_url,''), COALESCE(threads_url,''),
	COALESCE(youtube_url,''), COALESCE(tiktok_url,''),
	ref_code, short_code, commission_rate, status,
	total_clicks, total_orders, total_sales, total_commission,
	pending_commission, paid_commission, created_at, updated_at`

// AffiliateRepo implements affiliate.AffiliateStore against PostgreSQL.
type AffiliateRepo struct{ db *sql.DB }

// NewAffiliateRepo creates a Postgres-backed affiliate repository.
func NewAffiliateRepo(db *sql.DB) *AffiliateRepo { return &AffiliateRepo{db: db} }

func scanAffiliate(row rowScanner) (*domain.Affiliate, error) {
	a := &domain.Affiliate{}
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.Domain, &a.Type,
		&a.Facebook, &a.Instagram, &a.Threads, &a.YouTube, &a.TikTok,
		&a.RefCode, &a.ShortCode, &a.CommissionRate, &a.Status,
		&a.TotalClicks, &a.TotalOrders, &a.TotalSales, &a.TotalCommission,
		&a.PendingCommission, &a.PaidCommission, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *AffiliateRepo) Create(ctx context.Context, a *domain.Affiliate) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO affiliates (id, name, email, domain, affiliate_type,
			facebook_url, instagram_url, threads_url, youtube_url, tiktok_url,
			ref_code, short_code, commission_rate, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5,
			NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), NULLIF($10,''),
			$11, $12, $13, $14, $15, $15)
	`, a.ID, a.Name, a.Email, a.Domain, a.Type,
		a.Facebook, a.Instagram, a.Threads, a.YouTube, a.TikTok,
		a.RefCode, a.ShortCode, a.CommissionRate, a.Status, now)
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "affiliates_short_code_key":
			return affiliate.ErrDuplicateShortCode
		default:
			return affiliate.ErrDuplicateRefCode
		}
	}
	if err != nil {
		return fmt.Errorf("create affiliate: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (r *AffiliateRepo) getBy(ctx context.Context, column, value string) (*domain.Affiliate, error) {
	a, err := scanAffiliate(r.db.QueryRowContext(ctx,
		`SELECT `+affiliateColumns+` FROM affiliates WHERE `+column+` = $1`, value))
	if err == sql.ErrNoRows {
		return nil, affiliate.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get affiliate by %s: %w", column, err)
	}
	return a, nil
}

func (r *AffiliateRepo) Get(ctx context.Context, id string) (*domain.Affiliate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, affiliate.ErrNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *AffiliateRepo) GetByRefCode(ctx context.Context, refCode string) (*domain.Affiliate, error) {
	return r.getBy(ctx, "ref_code", refCode)
}

func (r *AffiliateRepo) GetByShortCode(ctx context.Context, shortCode string) (*domain.Affiliate, error) {
	return r.getBy(ctx, "short_code", shortCode)
}

func (r *AffiliateRepo) List(ctx context.Context, f affiliate.ListFilter) ([]domain.Affiliate, error) {
	q := `SELECT ` + affiliateColumns + ` FROM affiliates WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Type != "" {
		q += fmt.Sprintf(" AND affiliate_type = $%d", idx)
		args = append(args, f.Type)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list affiliates: %w", err)
	}
	defer rows.Close()

	var out []domain.Affiliate
	for rows.Next() {
		a, err := scanAffiliate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan affiliate: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AffiliateRepo) Update(ctx context.Context, a *domain.Affiliate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE affiliates SET name = $2, email = NULLIF($3,''), domain = NULLIF($4,''),
			affiliate_type = $5, facebook_url = NULLIF($6,''), instagram_url = NULLIF($7,''),
			threads_url = NULLIF($8,''), youtube_url = NULLIF($9,''), tiktok_url = NULLIF($10,''),
			commission_rate = $11, status = $12, updated_at = NOW()
		WHERE id = $1
	`, a.ID, a.Name, a.Email, a.Domain, a.Type,
		a.Facebook, a.Instagram, a.Threads, a.YouTube, a.TikTok,
		a.CommissionRate, a.Status)
	if err != nil {
		return fmt.Errorf("update affiliate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return affiliate.ErrNotFound
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// addTotals applies d to an affiliate's running totals. Commission buckets
// are floored at zero. Callers run it inside the transaction that produced
// the change.
func addTotals(ctx context.Context, ex execer, id string, d domain.TotalsDelta) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE affiliates SET
			total_clicks = total_clicks + $2,
			total_orders = total_orders + $3,
			total_sales = total_sales + $4,
			total_commission = GREATEST(total_commission + $5, 0),
			pending_commission = GREATEST(pending_commission + $6, 0),
			paid_commission = paid_commission + $7,
			updated_at = NOW()
		WHERE id = $1
	`, id, d.Clicks, d.Orders, d.Sales, d.Commission, d.PendingCommission, d.PaidCommission)
	if err != nil {
		return fmt.Errorf("add affiliate totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return affiliate.ErrNotFound
	}
	return nil
}

func (r *AffiliateRepo) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	st := &domain.DashboardStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM affiliates WHERE status = 'active'),
			(SELECT COUNT(*) FROM referral_orders),
			(SELECT COUNT(*) FROM referral_orders WHERE status = 'pending'),
			COALESCE(SUM(total_sales), 0),
			COALESCE(SUM(total_commission), 0),
			COALESCE(SUM(pending_commission), 0)
		FROM affiliates
	`).Scan(&st.TotalAffiliates, &st.TotalOrders, &st.PendingOrders,
		&st.TotalSales, &st.TotalCommission, &st.PendingCommission)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return st, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
)

// PayoutRepo implements affiliate.PayoutStore against PostgreSQL.
type PayoutRepo struct{ db *sql.DB }

// NewPayoutRepo creates a Postgres-backed payout repository.
func NewPayoutRepo(db *sql.DB) *PayoutRepo { return &PayoutRepo{db: db} }

func (r *PayoutRepo) InsertPayout(ctx context.Context, p *domain.Payout) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payouts (id, affiliate_id, amount, currency, payment_method,
			payment_details, note, status, paid_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), $8, $9)
	`, p.ID, p.AffiliateID, p.Amount, p.Currency, p.PaymentMethod,
		p.PaymentDetails, p.Note, p.Status, p.PaidAt)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}

	if err := addTotals(ctx, tx, p.AffiliateID, domain.TotalsDelta{
		PendingCommission: -p.Amount,
		PaidCommission:    p.Amount,
	}); err != nil {
		return fmt.Errorf("settle payout %s: %w", p.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payout: %w", err)
	}
	return nil
}

func (r *PayoutRepo) ListPayouts(ctx context.Context, affiliateID string, limit int) ([]domain.Payout, error) {
	q := `SELECT p.id, p.affiliate_id, p.amount, p.currency, COALESCE(p.payment_method,''),
		       COALESCE(p.payment_details,''), COALESCE(p.note,''), p.status, p.paid_at,
		       a.name, a.ref_code
		FROM payouts p JOIN affiliates a ON a.id = p.affiliate_id`
	args := []interface{}{limit}
	if affiliateID != "" {
		q += ` WHERE p.affiliate_id = $2`
		args = append(args, affiliateID)
	}
	q += ` ORDER BY p.paid_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.ID, &p.AffiliateID, &p.Amount, &p.Currency, &p.PaymentMethod,
			&p.PaymentDetails, &p.Note, &p.Status, &p.PaidAt,
			&p.AffiliateName, &p.AffiliateRefCode); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

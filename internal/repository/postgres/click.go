package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

// ClickRepo implements affiliate.ClickStore against PostgreSQL.
type ClickRepo struct{ db *sql.DB }

// NewClickRepo creates a Postgres-backed click repository.
func NewClickRepo(db *sql.DB) *ClickRepo { return &ClickRepo{db: db} }

func (r *ClickRepo) InsertClick(ctx context.Context, c *domain.Click) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO clicks (id, affiliate_id, ip_address, user_agent, referer, landed_url, created_at)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.AffiliateID, c.IPAddress, c.UserAgent, c.Referer, c.LandedURL, c.CreatedAt)
	if foreignKeyViolation(err) {
		return affiliate.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if err := addTotals(ctx, tx, c.AffiliateID, domain.TotalsDelta{Clicks: 1}); err != nil {
		return fmt.Errorf("count click: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit click: %w", err)
	}
	return nil
}

func (r *ClickRepo) ListClicks(ctx context.Context, affiliateID string, limit int) ([]domain.Click, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, affiliate_id, COALESCE(ip_address,''), COALESCE(user_agent,''),
		       COALESCE(referer,''), COALESCE(landed_url,''), created_at
		FROM clicks
		WHERE affiliate_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, affiliateID, limit)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	defer rows.Close()

	var out []domain.Click
	for rows.Next() {
		var c domain.Click
		if err := rows.Scan(&c.ID, &c.AffiliateID, &c.IPAddress, &c.UserAgent, &c.Referer, &c.LandedURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

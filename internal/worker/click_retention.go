// Package worker holds the background jobs run by cmd/worker.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/lib/pq"
)

const (
	// DefaultCleanupInterval is how often the retention cycle runs.
	DefaultCleanupInterval = time.Hour

	// cleanupBatchSize limits each DELETE to avoid long-held locks.
	cleanupBatchSize = 10000
)

// ClickRetentionWorker deletes click rows older than the retention window.
// Affiliates' running click totals are kept on the affiliate row and are
// not affected.
type ClickRetentionWorker struct {
	db         *sql.DB
	retention  time.Duration
	interval   time.Duration
	batchPause time.Duration
}

// NewClickRetentionWorker keeps clicks for retentionDays days.
func NewClickRetentionWorker(db *sql.DB, retentionDays int) *ClickRetentionWorker {
	return &ClickRetentionWorker{
		db:         db,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		interval:   DefaultCleanupInterval,
		batchPause: 100 * time.Millisecond,
	}
}

// Start runs a cycle immediately and then every interval until ctx ends.
func (w *ClickRetentionWorker) Start(ctx context.Context) {
	logger.Info("click retention worker starting", "retention", w.retention.String(), "interval", w.interval.String())

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce deletes expired clicks in batches and returns how many went.
func (w *ClickRetentionWorker) RunOnce(ctx context.Context) int64 {
	if w.retention <= 0 {
		return 0
	}
	start := time.Now()
	cutoff := start.Add(-w.retention).UTC()

	var total int64
	for ctx.Err() == nil {
		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		res, err := w.db.ExecContext(queryCtx, `
			DELETE FROM clicks
			WHERE id IN (
				SELECT id FROM clicks WHERE created_at < $1 LIMIT $2
			)`, cutoff, cleanupBatchSize)
		cancel()

		if err != nil {
			if isUndefinedTable(err) {
				logger.Warn("clicks table missing, skipping retention")
			} else {
				logger.Error("click retention delete failed", "error", err)
			}
			break
		}

		affected, _ := res.RowsAffected()
		total += affected
		if affected < cleanupBatchSize {
			break
		}
		time.Sleep(w.batchPause)
	}

	if total > 0 {
		logger.Info("expired clicks removed", "count", total, "took", time.Since(start).Round(time.Millisecond).String())
	}
	return total
}

// isUndefinedTable reports Postgres error 42P01, raised before migrations run.
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}

package worker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T) (*ClickRetentionWorker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w := NewClickRetentionWorker(db, 365)
	w.batchPause = 0
	return w, mock
}

func TestRunOnce_DeletesInBatches(t *testing.T) {
	w, mock := newTestWorker(t)

	mock.ExpectExec("DELETE FROM clicks").
		WithArgs(sqlmock.AnyArg(), cleanupBatchSize).
		WillReturnResult(sqlmock.NewResult(0, cleanupBatchSize))
	mock.ExpectExec("DELETE FROM clicks").
		WithArgs(sqlmock.AnyArg(), cleanupBatchSize).
		WillReturnResult(sqlmock.NewResult(0, 42))

	var logs bytes.Buffer
	logger.SetOutput(&logs)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	// The short second batch ends the run without another DELETE.
	assert.Equal(t, int64(cleanupBatchSize+42), w.RunOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NotContains(t, logs.String(), "click retention delete failed")
}

func TestRunOnce_EmptyTableOneStatement(t *testing.T) {
	w, mock := newTestWorker(t)
	mock.ExpectExec("DELETE FROM clicks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, int64(0), w.RunOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_StopsOnError(t *testing.T) {
	for _, err := range []error{&pq.Error{Code: "42P01"}, errors.New("connection reset")} {
		w, mock := newTestWorker(t)
		mock.ExpectExec("DELETE FROM clicks").WillReturnError(err)

		assert.Equal(t, int64(0), w.RunOnce(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestRunOnce_DisabledRetention(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, int64(0), NewClickRetentionWorker(db, 0).RunOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_ReturnsWhenCancelled(t *testing.T) {
	w, mock := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, isUndefinedTable(&pq.Error{Code: "42P01"}))
	assert.False(t, isUndefinedTable(&pq.Error{Code: "23505"}))
	assert.False(t, isUndefinedTable(errors.New("relation does not exist")))
}

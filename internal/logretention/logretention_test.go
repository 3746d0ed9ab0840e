package logretention

import (
	"context"
	"testing"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/logstore"
	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorker_Validation(t *testing.T) {
	t.Parallel()
	history := logstore.NewMemLogStore()

	_, err := NewWorker(history, 0, time.Hour, logging.NewNop())
	assert.Error(t, err)

	_, err = NewWorker(history, time.Hour, 0, logging.NewNop())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	history := logstore.NewMemLogStore()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, age := range []time.Duration{time.Hour, 48 * time.Hour, 31 * 24 * time.Hour} {
		require.NoError(t, history.Insert(ctx, &models.DeliveryRecord{
			DeliveryID: string(rune('a' + i)),
			WebhookID:  1,
			CreatedAt:  now.Add(-age),
		}))
	}

	worker, err := NewWorker(history, 30*24*time.Hour, time.Hour, logging.NewNop())
	require.NoError(t, err)
	worker.now = func() time.Time { return now }

	require.NoError(t, worker.RunOnce(ctx))

	stats, err := history.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total, "only the 31-day-old record is pruned")

	require.NoError(t, worker.RunOnce(ctx), "pruning again is a no-op")
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	worker, err := NewWorker(logstore.NewMemLogStore(), time.Hour, time.Hour, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

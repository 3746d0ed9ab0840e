package logstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecords(t *testing.T, store *MemLogStore, base time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		record := &models.DeliveryRecord{
			DeliveryID: fmt.Sprintf("d-%d", i),
			WebhookID:  int64(1 + i%2),
			Event:      models.EventContentCreated,
			StatusCode: 200,
			Success:    i%2 == 0,
			Attempt:    1,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Insert(ctx, record))
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	store := NewMemLogStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRecords(t, store, base)
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		resp, err := store.List(ctx, ListRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Deliveries, 5)
		assert.Equal(t, int64(5), resp.Total)
		assert.Equal(t, "d-4", resp.Deliveries[0].DeliveryID)
		assert.Equal(t, "d-0", resp.Deliveries[4].DeliveryID)
	})

	t.Run("filter by webhook", func(t *testing.T) {
		resp, err := store.List(ctx, ListRequest{WebhookID: 2})
		require.NoError(t, err)
		require.Len(t, resp.Deliveries, 2)
		for _, record := range resp.Deliveries {
			assert.Equal(t, int64(2), record.WebhookID)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		resp, err := store.List(ctx, ListRequest{Page: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, resp.Deliveries, 2)
		assert.Equal(t, int64(5), resp.Total)
		assert.Equal(t, "d-2", resp.Deliveries[0].DeliveryID)
	})
}

func TestInsertCopiesRecord(t *testing.T) {
	t.Parallel()
	store := NewMemLogStore()
	ctx := context.Background()

	record := &models.DeliveryRecord{DeliveryID: "d-1", WebhookID: 1, CreatedAt: time.Now()}
	require.NoError(t, store.Insert(ctx, record))
	record.Error = "mutated after insert"

	resp, err := store.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Deliveries, 1)
	assert.Empty(t, resp.Deliveries[0].Error)
}

func TestStats(t *testing.T) {
	t.Parallel()
	store := NewMemLogStore()
	seedRecords(t, store, time.Now())
	ctx := context.Background()

	all, err := store.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 5, Succeeded: 3, Failed: 2}, all)

	one, err := store.Stats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 2, Succeeded: 0, Failed: 2}, one)
}

func TestDeleteOlderThan(t *testing.T) {
	t.Parallel()
	store := NewMemLogStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRecords(t, store, base)
	ctx := context.Background()

	deleted, err := store.DeleteOlderThan(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	resp, err := store.List(ctx, ListRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Deliveries, 3)

	deleted, err = store.DeleteOlderThan(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

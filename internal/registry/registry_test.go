package registry

import (
	"context"
	"testing"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemStore {
	return NewMemStore(logging.NewNop())
}

func TestCreate(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	webhook, err := store.Create(ctx, CreateWebhookInput{
		Name:   "deploy hook",
		URL:    "https://example.com/hooks",
		Events: []string{models.EventContentCreated, models.EventContentPublished},
		Secret: "s3cret",
		Headers: map[string]string{
			"X-Env": "staging",
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, webhook.ID)
	assert.Equal(t, "deploy hook", webhook.Name)
	assert.True(t, webhook.IsActive, "active defaults to true")
	assert.False(t, webhook.CreatedAt.IsZero())

	got, err := store.Get(ctx, webhook.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, webhook.Events, got.Events)
	assert.Equal(t, "staging", got.Headers["X-Env"])
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	tests := []struct {
		name      string
		input     CreateWebhookInput
		wantField string
	}{
		{
			name:      "missing name",
			input:     CreateWebhookInput{URL: "https://example.com", Events: []string{models.EventContentCreated}},
			wantField: "name",
		},
		{
			name:      "relative url",
			input:     CreateWebhookInput{Name: "w", URL: "/hooks", Events: []string{models.EventContentCreated}},
			wantField: "url",
		},
		{
			name:      "non-http scheme",
			input:     CreateWebhookInput{Name: "w", URL: "ftp://example.com", Events: []string{models.EventContentCreated}},
			wantField: "url",
		},
		{
			name:      "empty events",
			input:     CreateWebhookInput{Name: "w", URL: "https://example.com", Events: []string{}},
			wantField: "events",
		},
		{
			name:      "unknown event",
			input:     CreateWebhookInput{Name: "w", URL: "https://example.com", Events: []string{"content.reticulated"}},
			wantField: "events",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Create(ctx, tc.input)
			require.Error(t, err)
			var validationErr *ErrWebhookValidation
			require.ErrorAs(t, err, &validationErr)
			require.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, tc.wantField, validationErr.Errors[0].Field)
		})
	}
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()
	store := newTestStore()

	webhook, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, webhook)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateWebhookInput{
		Name:   "w1",
		URL:    "https://example.com",
		Events: []string{models.EventContentCreated},
	})
	require.NoError(t, err)

	t.Run("patches only provided fields", func(t *testing.T) {
		name := "renamed"
		inactive := false
		updated, err := store.Update(ctx, created.ID, UpdateWebhookInput{Name: &name, IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Name)
		assert.False(t, updated.IsActive)
		assert.Equal(t, created.URL, updated.URL)
		assert.Equal(t, created.Events, updated.Events)
	})

	t.Run("empty patch returns stored row unchanged", func(t *testing.T) {
		before, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		after, err := store.Update(ctx, created.ID, UpdateWebhookInput{})
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("not found", func(t *testing.T) {
		name := "x"
		_, err := store.Update(ctx, 999, UpdateWebhookInput{Name: &name})
		assert.ErrorIs(t, err, ErrWebhookNotFound)
	})
}

func TestDelete_Idempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateWebhookInput{
		Name:   "w1",
		URL:    "https://example.com",
		Events: []string{models.EventContentCreated},
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	require.NoError(t, store.Delete(ctx, created.ID), "second delete must not error")

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQuery(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	inactive := false
	_, err := store.Create(ctx, CreateWebhookInput{Name: "a", URL: "https://a.example.com", Events: []string{models.EventContentCreated}})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateWebhookInput{Name: "b", URL: "https://b.example.com", Events: []string{models.EventContentUpdated}})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateWebhookInput{Name: "c", URL: "https://c.example.com", Events: []string{models.EventContentCreated}, IsActive: &inactive})
	require.NoError(t, err)

	t.Run("ordered by created_at descending", func(t *testing.T) {
		resp, err := store.Query(ctx, QueryRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Webhooks, 3)
		assert.Equal(t, int64(3), resp.Total)
		assert.Equal(t, "c", resp.Webhooks[0].Name)
		assert.Equal(t, "b", resp.Webhooks[1].Name)
		assert.Equal(t, "a", resp.Webhooks[2].Name)
	})

	t.Run("filter by event", func(t *testing.T) {
		resp, err := store.Query(ctx, QueryRequest{Event: models.EventContentCreated})
		require.NoError(t, err)
		require.Len(t, resp.Webhooks, 2)
		for _, w := range resp.Webhooks {
			assert.True(t, w.HasEvent(models.EventContentCreated))
		}
	})

	t.Run("filter by active flag", func(t *testing.T) {
		active := true
		resp, err := store.Query(ctx, QueryRequest{IsActive: &active})
		require.NoError(t, err)
		assert.Len(t, resp.Webhooks, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		resp, err := store.Query(ctx, QueryRequest{Page: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, resp.Webhooks, 1)
		assert.Equal(t, int64(3), resp.Total)
		assert.Equal(t, "a", resp.Webhooks[0].Name)
	})
}

func TestFindActiveForEvent(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	inactive := false
	w1, err := store.Create(ctx, CreateWebhookInput{Name: "w1", URL: "https://w1.example.com", Events: []string{models.EventContentCreated}})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateWebhookInput{Name: "w2", URL: "https://w2.example.com", Events: []string{models.EventContentUpdated}})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateWebhookInput{Name: "w3", URL: "https://w3.example.com", Events: []string{models.EventContentCreated}, IsActive: &inactive})
	require.NoError(t, err)

	matches, err := store.FindActiveForEvent(ctx, models.EventContentCreated)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, w1.ID, matches[0].ID)

	t.Run("exact match is case sensitive", func(t *testing.T) {
		matches, err := store.FindActiveForEvent(ctx, "Content.Created")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestCorruptRows(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	ctx := context.Background()

	good, err := store.Create(ctx, CreateWebhookInput{Name: "good", URL: "https://good.example.com", Events: []string{models.EventContentCreated}})
	require.NoError(t, err)

	// Simulate rows whose stored JSON was mangled outside the API.
	store.mu.Lock()
	store.seq++
	store.rows[store.seq] = &memRow{
		id:        store.seq,
		name:      "corrupt-events",
		url:       "https://corrupt.example.com",
		rawEvents: []byte(`{"not":"an array"`),
		isActive:  true,
		createdAt: time.Now(),
	}
	store.seq++
	store.rows[store.seq] = &memRow{
		id:        store.seq,
		name:      "object-events",
		url:       "https://object.example.com",
		rawEvents: []byte(`{"content.created": true}`),
		isActive:  true,
		createdAt: time.Now(),
	}
	store.mu.Unlock()

	t.Run("corrupt rows are skipped, not errored", func(t *testing.T) {
		matches, err := store.FindActiveForEvent(ctx, models.EventContentCreated)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, good.ID, matches[0].ID)
	})

	t.Run("corrupt rows still appear in listings with empty events", func(t *testing.T) {
		resp, err := store.Query(ctx, QueryRequest{})
		require.NoError(t, err)
		assert.Len(t, resp.Webhooks, 3)
	})
}

func TestNullCreatedAtDefaultsToEpoch(t *testing.T) {
	t.Parallel()
	assert.Equal(t, time.Unix(0, 0).UTC(), normalizeCreatedAt(nil))
	zero := time.Time{}
	assert.Equal(t, time.Unix(0, 0).UTC(), normalizeCreatedAt(&zero))
	now := time.Now()
	assert.Equal(t, now, normalizeCreatedAt(&now))
}

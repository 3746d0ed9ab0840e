package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed registry. Event filtering happens in SQL via
// the jsonb containment operator so FindActiveForEvent stays O(matching rows).
type PGStore struct {
	db     *pgxpool.Pool
	logger *logging.Logger
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *pgxpool.Pool, logger *logging.Logger) *PGStore {
	return &PGStore{db: db, logger: logger}
}

const webhookColumns = `id, name, url, events::text, headers::text, COALESCE(secret, ''), is_active, created_at`

func (s *PGStore) Create(ctx context.Context, input CreateWebhookInput) (*models.Webhook, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	eventsJSON, err := json.Marshal(input.Events)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	var headersJSON []byte
	if input.Headers != nil {
		headersJSON, err = json.Marshal(input.Headers)
		if err != nil {
			return nil, fmt.Errorf("marshal headers: %w", err)
		}
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO webhooks (name, url, events, headers, secret, is_active, created_at)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, NULLIF($5, ''), $6, now())
		RETURNING id
	`, input.Name, input.URL, string(eventsJSON), nullableJSON(headersJSON), input.Secret, isActive).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}

	// Re-read so timestamps reflect storage, not the caller's clock.
	return s.Get(ctx, id)
}

func (s *PGStore) Get(ctx context.Context, id int64) (*models.Webhook, error) {
	row := s.db.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id)
	webhook, err := s.scanWebhook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return webhook, err
}

func (s *PGStore) Update(ctx context.Context, id int64, patch UpdateWebhookInput) (*models.Webhook, error) {
	if patch.Empty() {
		webhook, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if webhook == nil {
			return nil, ErrWebhookNotFound
		}
		return webhook, nil
	}
	if err := validateUpdate(patch); err != nil {
		return nil, err
	}

	set := make([]string, 0, 6)
	args := make([]any, 0, 7)
	addSet := func(expr string, arg any) {
		args = append(args, arg)
		set = append(set, fmt.Sprintf(expr, len(args)))
	}

	if patch.Name != nil {
		addSet("name = $%d", *patch.Name)
	}
	if patch.URL != nil {
		addSet("url = $%d", *patch.URL)
	}
	if patch.Events != nil {
		eventsJSON, err := json.Marshal(patch.Events)
		if err != nil {
			return nil, fmt.Errorf("marshal events: %w", err)
		}
		addSet("events = $%d::jsonb", string(eventsJSON))
	}
	if patch.Headers != nil {
		headersJSON, err := json.Marshal(patch.Headers)
		if err != nil {
			return nil, fmt.Errorf("marshal headers: %w", err)
		}
		addSet("headers = $%d::jsonb", string(headersJSON))
	}
	if patch.Secret != nil {
		addSet("secret = NULLIF($%d, '')", *patch.Secret)
	}
	if patch.IsActive != nil {
		addSet("is_active = $%d", *patch.IsActive)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE webhooks SET %s WHERE id = $%d RETURNING id`,
		strings.Join(set, ", "), len(args))

	var updatedID int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&updatedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("update webhook: %w", err)
	}
	return s.Get(ctx, updatedID)
}

func (s *PGStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func (s *PGStore) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	rows, err := s.db.Query(ctx, `
		SELECT `+webhookColumns+`, COUNT(*) OVER() AS total
		FROM webhooks
		WHERE ($1::text = '' OR (jsonb_typeof(events) = 'array' AND events ? $1))
		AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, req.Event, req.IsActive, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	resp := &QueryResponse{Page: page, Limit: limit, Webhooks: []*models.Webhook{}}
	for rows.Next() {
		var (
			rawEvents, rawHeaders *string
			secret                string
			createdAt             *time.Time
			webhook               models.Webhook
		)
		if err := rows.Scan(&webhook.ID, &webhook.Name, &webhook.URL, &rawEvents, &rawHeaders,
			&secret, &webhook.IsActive, &createdAt, &resp.Total); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		s.fill(&webhook, rawEvents, rawHeaders, secret, createdAt)
		resp.Webhooks = append(resp.Webhooks, &webhook)
	}
	return resp, rows.Err()
}

func (s *PGStore) FindActiveForEvent(ctx context.Context, event string) ([]*models.Webhook, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE is_active AND jsonb_typeof(events) = 'array' AND events ? $1
	`, event)
	if err != nil {
		return nil, fmt.Errorf("find webhooks for event: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		var (
			rawEvents, rawHeaders *string
			secret                string
			createdAt             *time.Time
			webhook               models.Webhook
		)
		if err := rows.Scan(&webhook.ID, &webhook.Name, &webhook.URL, &rawEvents, &rawHeaders,
			&secret, &webhook.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		s.fill(&webhook, rawEvents, rawHeaders, secret, createdAt)
		webhooks = append(webhooks, &webhook)
	}
	return webhooks, rows.Err()
}

func (s *PGStore) scanWebhook(row pgx.Row) (*models.Webhook, error) {
	var (
		rawEvents, rawHeaders *string
		secret                string
		createdAt             *time.Time
		webhook               models.Webhook
	)
	if err := row.Scan(&webhook.ID, &webhook.Name, &webhook.URL, &rawEvents, &rawHeaders,
		&secret, &webhook.IsActive, &createdAt); err != nil {
		return nil, err
	}
	s.fill(&webhook, rawEvents, rawHeaders, secret, createdAt)
	return &webhook, nil
}

func (s *PGStore) fill(webhook *models.Webhook, rawEvents, rawHeaders *string, secret string, createdAt *time.Time) {
	if rawEvents != nil {
		webhook.Events = decodeEvents([]byte(*rawEvents), s.logger, webhook.ID)
	}
	if rawHeaders != nil {
		webhook.Headers = decodeHeaders([]byte(*rawHeaders), s.logger, webhook.ID)
	}
	webhook.Secret = secret
	webhook.CreatedAt = normalizeCreatedAt(createdAt)
}

func nullableJSON(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

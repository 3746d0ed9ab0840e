package registry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
)

// memRow keeps events/headers as raw JSON so the in-memory store exhibits the
// same lenient decode semantics as the Postgres driver.
type memRow struct {
	id         int64
	name       string
	url        string
	secret     string
	rawEvents  []byte
	rawHeaders []byte
	isActive   bool
	createdAt  time.Time
}

// MemStore is an in-memory registry used in tests and local development.
type MemStore struct {
	mu     sync.RWMutex
	seq    int64
	rows   map[int64]*memRow
	logger *logging.Logger

	// now is overridable so tests can pin creation timestamps.
	now func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore(logger *logging.Logger) *MemStore {
	return &MemStore{
		rows:   make(map[int64]*memRow),
		logger: logger,
		now:    time.Now,
	}
}

func (s *MemStore) Create(_ context.Context, input CreateWebhookInput) (*models.Webhook, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	eventsJSON, err := json.Marshal(input.Events)
	if err != nil {
		return nil, err
	}
	var headersJSON []byte
	if input.Headers != nil {
		if headersJSON, err = json.Marshal(input.Headers); err != nil {
			return nil, err
		}
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	row := &memRow{
		id:         s.seq,
		name:       input.Name,
		url:        input.URL,
		secret:     input.Secret,
		rawEvents:  eventsJSON,
		rawHeaders: headersJSON,
		isActive:   isActive,
		createdAt:  s.now(),
	}
	s.rows[row.id] = row
	return s.toWebhook(row), nil
}

func (s *MemStore) Get(_ context.Context, id int64) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return s.toWebhook(row), nil
}

func (s *MemStore) Update(_ context.Context, id int64, patch UpdateWebhookInput) (*models.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrWebhookNotFound
	}
	if patch.Empty() {
		return s.toWebhook(row), nil
	}
	if err := validateUpdate(patch); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		row.name = *patch.Name
	}
	if patch.URL != nil {
		row.url = *patch.URL
	}
	if patch.Events != nil {
		eventsJSON, err := json.Marshal(patch.Events)
		if err != nil {
			return nil, err
		}
		row.rawEvents = eventsJSON
	}
	if patch.Headers != nil {
		headersJSON, err := json.Marshal(patch.Headers)
		if err != nil {
			return nil, err
		}
		row.rawHeaders = headersJSON
	}
	if patch.Secret != nil {
		row.secret = *patch.Secret
	}
	if patch.IsActive != nil {
		row.isActive = *patch.IsActive
	}
	return s.toWebhook(row), nil
}

func (s *MemStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *MemStore) Query(_ context.Context, req QueryRequest) (*QueryResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	s.mu.RLock()
	matched := make([]*models.Webhook, 0, len(s.rows))
	for _, row := range s.rows {
		webhook := s.toWebhook(row)
		if req.Event != "" && !webhook.HasEvent(req.Event) {
			continue
		}
		if req.IsActive != nil && webhook.IsActive != *req.IsActive {
			continue
		}
		matched = append(matched, webhook)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	resp := &QueryResponse{
		Total:    int64(len(matched)),
		Page:     page,
		Limit:    limit,
		Webhooks: []*models.Webhook{},
	}
	start := (page - 1) * limit
	if start < len(matched) {
		end := start + limit
		if end > len(matched) {
			end = len(matched)
		}
		resp.Webhooks = matched[start:end]
	}
	return resp, nil
}

func (s *MemStore) FindActiveForEvent(_ context.Context, event string) ([]*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var webhooks []*models.Webhook
	for _, row := range s.rows {
		if !row.isActive {
			continue
		}
		webhook := s.toWebhook(row)
		if webhook.HasEvent(event) {
			webhooks = append(webhooks, webhook)
		}
	}
	return webhooks, nil
}

func (s *MemStore) toWebhook(row *memRow) *models.Webhook {
	createdAt := row.createdAt
	return &models.Webhook{
		ID:        row.id,
		Name:      row.name,
		URL:       row.url,
		Events:    decodeEvents(row.rawEvents, s.logger, row.id),
		Headers:   decodeHeaders(row.rawHeaders, s.logger, row.id),
		Secret:    row.secret,
		IsActive:  row.isActive,
		CreatedAt: normalizeCreatedAt(&createdAt),
	}
}

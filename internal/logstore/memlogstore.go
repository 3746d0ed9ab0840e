package logstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ferriqa/ferriqa/internal/models"
)

// MemLogStore is an in-memory history store used in tests and local development.
type MemLogStore struct {
	mu      sync.RWMutex
	records []*models.DeliveryRecord
}

var _ LogStore = (*MemLogStore)(nil)

func NewMemLogStore() *MemLogStore {
	return &MemLogStore{}
}

func (s *MemLogStore) Insert(_ context.Context, record *models.DeliveryRecord) error {
	clone := *record
	s.mu.Lock()
	s.records = append(s.records, &clone)
	s.mu.Unlock()
	return nil
}

func (s *MemLogStore) List(_ context.Context, req ListRequest) (*ListResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	s.mu.RLock()
	matched := make([]*models.DeliveryRecord, 0, len(s.records))
	for _, record := range s.records {
		if req.WebhookID != 0 && record.WebhookID != req.WebhookID {
			continue
		}
		matched = append(matched, record)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	resp := &ListResponse{
		Total:      int64(len(matched)),
		Page:       page,
		Limit:      limit,
		Deliveries: []*models.DeliveryRecord{},
	}
	start := (page - 1) * limit
	if start < len(matched) {
		end := start + limit
		if end > len(matched) {
			end = len(matched)
		}
		resp.Deliveries = matched[start:end]
	}
	return resp, nil
}

func (s *MemLogStore) Stats(_ context.Context, webhookID int64) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, record := range s.records {
		if webhookID != 0 && record.WebhookID != webhookID {
			continue
		}
		stats.Total++
		if record.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return &stats, nil
}

func (s *MemLogStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if record.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

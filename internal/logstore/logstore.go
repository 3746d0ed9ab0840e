// Package logstore persists the append-only delivery history: one record per
// HTTP attempt, keyed by delivery ID.
package logstore

import (
	"context"
	"time"

	"github.com/ferriqa/ferriqa/internal/models"
)

type ListRequest struct {
	WebhookID int64 // 0 lists across all webhooks
	Page      int
	Limit     int
}

type ListResponse struct {
	Deliveries []*models.DeliveryRecord `json:"deliveries"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	Limit      int                      `json:"limit"`
}

type Stats struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

type LogStore interface {
	// Insert appends one attempt record. Records are never mutated.
	Insert(ctx context.Context, record *models.DeliveryRecord) error
	// List returns records ordered by created_at descending.
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Stats(ctx context.Context, webhookID int64) (*Stats, error)
	// DeleteOlderThan removes records created before the cutoff and reports
	// how many were deleted. Used by the retention worker.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
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

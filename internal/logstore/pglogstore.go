package logstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGLogStore struct {
	db *pgxpool.Pool
}

var _ LogStore = (*PGLogStore)(nil)

func NewPGLogStore(db *pgxpool.Pool) *PGLogStore {
	return &PGLogStore{db: db}
}

func (s *PGLogStore) Insert(ctx context.Context, record *models.DeliveryRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO webhook_deliveries
			(id, webhook_id, event, status_code, success, attempt, response, duration, error, created_at, completed_at)
		VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11)
	`, record.DeliveryID, record.WebhookID, record.Event, record.StatusCode, record.Success,
		record.Attempt, record.Response, record.DurationMS, record.Error, record.CreatedAt, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

func (s *PGLogStore) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	rows, err := s.db.Query(ctx, `
		SELECT id, webhook_id, event, COALESCE(status_code, 0), success, attempt,
			COALESCE(response, ''), duration, COALESCE(error, ''), created_at, completed_at,
			COUNT(*) OVER() AS total
		FROM webhook_deliveries
		WHERE ($1::bigint = 0 OR webhook_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, req.WebhookID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery records: %w", err)
	}
	defer rows.Close()

	resp := &ListResponse{Page: page, Limit: limit, Deliveries: []*models.DeliveryRecord{}}
	for rows.Next() {
		var record models.DeliveryRecord
		if err := rows.Scan(&record.DeliveryID, &record.WebhookID, &record.Event, &record.StatusCode,
			&record.Success, &record.Attempt, &record.Response, &record.DurationMS, &record.Error,
			&record.CreatedAt, &record.CompletedAt, &resp.Total); err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		resp.Deliveries = append(resp.Deliveries, &record)
	}
	return resp, rows.Err()
}

func (s *PGLogStore) Stats(ctx context.Context, webhookID int64) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success)
		FROM webhook_deliveries
		WHERE ($1::bigint = 0 OR webhook_id = $1)
	`, webhookID).Scan(&stats.Total, &stats.Succeeded, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("delivery stats: %w", err)
	}
	return &stats, nil
}

func (s *PGLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM webhook_deliveries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete delivery records: %w", err)
	}
	return tag.RowsAffected(), nil
}

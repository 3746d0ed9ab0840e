// Package registry stores webhook subscriptions and answers the dispatcher's
// "who is subscribed to this event" query.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
	"go.uber.org/zap"
)

var ErrWebhookNotFound = errors.New("webhook not found")

type ValidationErrorDetail struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

type ErrWebhookValidation struct {
	Errors []ValidationErrorDetail
}

func (e *ErrWebhookValidation) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		fields = append(fields, fmt.Sprintf("%s (%s)", detail.Field, detail.Type))
	}
	return "webhook validation failed: " + strings.Join(fields, ", ")
}

type CreateWebhookInput struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Events   []string          `json:"events"`
	Secret   string            `json:"secret"`
	Headers  map[string]string `json:"headers"`
	IsActive *bool             `json:"is_active"`
}

// UpdateWebhookInput patches a webhook. Nil fields are left unchanged; an
// all-nil patch is a no-op that returns the stored row.
type UpdateWebhookInput struct {
	Name     *string           `json:"name"`
	URL      *string           `json:"url"`
	Events   []string          `json:"events"`
	Secret   *string           `json:"secret"`
	Headers  map[string]string `json:"headers"`
	IsActive *bool             `json:"is_active"`
}

func (in *UpdateWebhookInput) Empty() bool {
	return in.Name == nil && in.URL == nil && in.Events == nil &&
		in.Secret == nil && in.Headers == nil && in.IsActive == nil
}

type QueryRequest struct {
	Page     int
	Limit    int
	Event    string
	IsActive *bool
}

type QueryResponse struct {
	Webhooks []*models.Webhook `json:"webhooks"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type Store interface {
	Create(ctx context.Context, input CreateWebhookInput) (*models.Webhook, error)
	// Get returns (nil, nil) when the webhook does not exist.
	Get(ctx context.Context, id int64) (*models.Webhook, error)
	Update(ctx context.Context, id int64, patch UpdateWebhookInput) (*models.Webhook, error)
	// Delete is idempotent; deleting an absent webhook is not an error.
	Delete(ctx context.Context, id int64) error
	// Query lists webhooks ordered by created_at descending.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	// FindActiveForEvent returns active webhooks subscribed to the exact
	// event string. The filter runs at the storage layer so dispatch latency
	// does not grow with the total webhook count.
	FindActiveForEvent(ctx context.Context, event string) ([]*models.Webhook, error)
}

func validateCreate(input CreateWebhookInput) error {
	var details []ValidationErrorDetail
	if input.Name == "" {
		details = append(details, ValidationErrorDetail{Field: "name", Type: "required"})
	}
	if err := validateURL(input.URL); err != nil {
		details = append(details, ValidationErrorDetail{Field: "url", Type: "invalid_url"})
	}
	details = append(details, validateEvents(input.Events)...)
	if len(details) > 0 {
		return &ErrWebhookValidation{Errors: details}
	}
	return nil
}

func validateUpdate(patch UpdateWebhookInput) error {
	var details []ValidationErrorDetail
	if patch.Name != nil && *patch.Name == "" {
		details = append(details, ValidationErrorDetail{Field: "name", Type: "required"})
	}
	if patch.URL != nil {
		if err := validateURL(*patch.URL); err != nil {
			details = append(details, ValidationErrorDetail{Field: "url", Type: "invalid_url"})
		}
	}
	if patch.Events != nil {
		details = append(details, validateEvents(patch.Events)...)
	}
	if len(details) > 0 {
		return &ErrWebhookValidation{Errors: details}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("not an absolute http(s) URL: %q", raw)
	}
	return nil
}

func validateEvents(events []string) []ValidationErrorDetail {
	if len(events) == 0 {
		return []ValidationErrorDetail{{Field: "events", Type: "required"}}
	}
	var details []ValidationErrorDetail
	for _, e := range events {
		if !models.IsValidEvent(e) {
			details = append(details, ValidationErrorDetail{Field: "events", Type: "unknown_event"})
			break
		}
	}
	return details
}

// decodeEvents parses the stored events JSON. Corrupt JSON, or a value that is
// not an array, yields an empty subscription set: the webhook subsystem is an
// integration boundary and one broken row must not block dispatch for others.
func decodeEvents(raw []byte, logger *logging.Logger, webhookID int64) []string {
	if len(raw) == 0 {
		return nil
	}
	var events []string
	if err := json.Unmarshal(raw, &events); err != nil {
		logger.Warn("corrupt events JSON, treating as empty",
			zap.Int64("webhook_id", webhookID),
			zap.Error(err))
		return nil
	}
	return events
}

// decodeHeaders parses the stored headers JSON with the same lenient contract
// as decodeEvents.
func decodeHeaders(raw []byte, logger *logging.Logger, webhookID int64) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal(raw, &headers); err != nil {
		logger.Warn("corrupt headers JSON, treating as empty",
			zap.Int64("webhook_id", webhookID),
			zap.Error(err))
		return nil
	}
	return headers
}

// normalizeCreatedAt defaults a missing timestamp to the Unix epoch instead of
// erroring. Content-side code rejects null timestamps; this subsystem must not.
func normalizeCreatedAt(t *time.Time) time.Time {
	if t == nil || t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return *t
}

// Package deliverer performs a single signed webhook POST. It knows nothing
// about queues, retries, or storage; it takes a webhook and a payload and
// returns what happened on the wire.
package deliverer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
	"go.uber.org/zap"
)

const (
	defaultUserAgent = "Ferriqa-Webhook/1.0"

	// maxResponseBytes bounds how much of the subscriber's response body is
	// retained on the delivery record.
	maxResponseBytes = 1024
)

type Deliverer struct {
	client    *http.Client
	logger    *logging.Logger
	userAgent string
}

type Option func(*Deliverer)

// WithClient overrides the HTTP client. The per-attempt timeout is enforced
// through the request context, so the client itself carries no timeout.
func WithClient(client *http.Client) Option {
	return func(d *Deliverer) {
		d.client = client
	}
}

func WithUserAgent(userAgent string) Option {
	return func(d *Deliverer) {
		d.userAgent = userAgent
	}
}

func New(logger *logging.Logger, opts ...Option) *Deliverer {
	d := &Deliverer{
		client:    &http.Client{},
		logger:    logger,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends one POST for the (webhook, payload, attempt) tuple. The payload
// is serialised exactly once; the same bytes are signed and transmitted. The
// returned result is never nil.
func (d *Deliverer) Deliver(ctx context.Context, webhook *models.Webhook, payload *models.WebhookPayload, timeout time.Duration, attempt int) *models.AttemptResult {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return d.failure(start, attempt, &models.TransportError{
			Kind:    models.TransportErrorNetwork,
			Message: fmt.Sprintf("marshal payload: %s", err),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return d.failure(start, attempt, &models.TransportError{
			Kind:    models.TransportErrorNetwork,
			Message: fmt.Sprintf("build request: %s", err),
		})
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Delivery-ID", payload.DeliveryID)
	req.Header.Set("X-Webhook-Event", payload.Event)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(payload.Timestamp, 10))
	req.Header.Set("User-Agent", d.userAgent)
	if webhook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(webhook.Secret, body))
	}
	// Custom headers merge last and may override the defaults.
	for key, value := range webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		transportErr := classifyTransportError(err)
		d.logger.Ctx(ctx).Debug("webhook request failed",
			zap.String("delivery_id", payload.DeliveryID),
			zap.Int64("webhook_id", webhook.ID),
			zap.String("error_kind", string(transportErr.Kind)),
			zap.Int("attempt", attempt))
		return d.failure(start, attempt, transportErr)
	}
	defer resp.Body.Close()

	// A read failure is not fatal; the status is already known.
	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	result := &models.AttemptResult{
		Success:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:  resp.StatusCode,
		Attempt:     attempt,
		Response:    string(responseBody),
		Duration:    time.Since(start),
		CompletedAt: time.Now(),
	}
	d.logger.Ctx(ctx).Debug("webhook request completed",
		zap.String("delivery_id", payload.DeliveryID),
		zap.Int64("webhook_id", webhook.ID),
		zap.Int("status_code", resp.StatusCode),
		zap.Bool("success", result.Success),
		zap.Int("attempt", attempt))
	return result
}

func (d *Deliverer) failure(start time.Time, attempt int, transportErr *models.TransportError) *models.AttemptResult {
	return &models.AttemptResult{
		Success:     false,
		Err:         transportErr,
		Attempt:     attempt,
		Duration:    time.Since(start),
		CompletedAt: time.Now(),
	}
}

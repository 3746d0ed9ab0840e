package webhook

import (
	"context"

	"github.com/ferriqa/ferriqa/internal/models"
)

// Hooks lets the host application observe and transform deliveries. BeforeSend
// runs just before the HTTP call and may return a modified payload; AfterSend
// runs once per attempt regardless of outcome.
type Hooks interface {
	BeforeSend(ctx context.Context, webhook *models.Webhook, payload *models.WebhookPayload) *models.WebhookPayload
	AfterSend(ctx context.Context, webhook *models.Webhook, result *models.AttemptResult)
}

type NopHooks struct{}

func (NopHooks) BeforeSend(_ context.Context, _ *models.Webhook, payload *models.WebhookPayload) *models.WebhookPayload {
	return payload
}

func (NopHooks) AfterSend(context.Context, *models.Webhook, *models.AttemptResult) {}

package models

import "time"

// DeliveryJob is one pending HTTP attempt moving through the queue.
// Retries are new jobs with a fresh DeliveryID, never the same job re-run.
type DeliveryJob struct {
	DeliveryID        string
	WebhookID         int64
	Event             string
	Data              Data
	Attempt           int
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier int
	Timeout           time.Duration
	Priority          int
	ScheduledFor      time.Time
}

// WebhookPayload is the JSON body of an outbound POST. Field order matters:
// subscribers see {"event":...,"timestamp":...,"deliveryId":...,"data":...}.
type WebhookPayload struct {
	Event      string `json:"event"`
	Timestamp  int64  `json:"timestamp"`
	DeliveryID string `json:"deliveryId"`
	Data       Data   `json:"data"`
}

func NewWebhookPayload(event, deliveryID string, data Data, now time.Time) *WebhookPayload {
	return &WebhookPayload{
		Event:      event,
		Timestamp:  now.UnixMilli(),
		DeliveryID: deliveryID,
		Data:       data,
	}
}

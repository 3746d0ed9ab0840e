package models

import (
	"fmt"
	"time"
)

// TransportErrorKind classifies a network-level delivery failure.
type TransportErrorKind string

const (
	TransportErrorTimeout            TransportErrorKind = "timeout"
	TransportErrorConnectionReset    TransportErrorKind = "connection_reset"
	TransportErrorConnectionRefused  TransportErrorKind = "connection_refused"
	TransportErrorDNS                TransportErrorKind = "dns_error"
	TransportErrorTLS                TransportErrorKind = "tls_error"
	TransportErrorNetworkUnreachable TransportErrorKind = "network_unreachable"
	TransportErrorRedirect           TransportErrorKind = "redirect_error"
	TransportErrorNetwork            TransportErrorKind = "network_error"
)

// TransportError is a delivery failure that happened below HTTP: the request
// never completed with a status code.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AttemptResult is the outcome of a single HTTP POST.
type AttemptResult struct {
	Success     bool
	StatusCode  int // 0 when the request never completed
	Err         *TransportError
	Attempt     int
	Response    string // first KiB of the response body
	Duration    time.Duration
	CompletedAt time.Time
}

// ErrorMessage returns the message persisted to the delivery record, empty on
// success.
func (r *AttemptResult) ErrorMessage() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if !r.Success && r.StatusCode > 0 {
		return fmt.Sprintf("request failed with status %d", r.StatusCode)
	}
	return ""
}

// DeliveryRecord is the append-only audit row for one HTTP attempt.
type DeliveryRecord struct {
	DeliveryID  string     `json:"delivery_id"`
	WebhookID   int64      `json:"webhook_id"`
	Event       string     `json:"event"`
	StatusCode  int        `json:"status_code,omitempty"`
	Success     bool       `json:"success"`
	Attempt     int        `json:"attempt"`
	Response    string     `json:"response,omitempty"`
	DurationMS  int64      `json:"duration"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

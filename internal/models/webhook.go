package models

import "time"

// Webhook is a configured outbound endpoint subscribed to a set of events.
type Webhook struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Events    []string          `json:"events"`
	Headers   map[string]string `json:"headers,omitempty"`
	Secret    string            `json:"secret,omitempty"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
}

// HasEvent reports whether the webhook subscribes to the given event.
// Matching is exact and case sensitive.
func (w *Webhook) HasEvent(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

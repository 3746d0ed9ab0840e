// Package idgen centralizes ID generation for delivery attempts.
package idgen

import "github.com/google/uuid"

// DeliveryID returns a fresh UUID v4. Every HTTP attempt gets its own
// delivery ID; retries must never reuse the ID of a previous attempt.
func DeliveryID() string {
	return uuid.New().String()
}

package deliverer

import (
	"strings"

	"github.com/ferriqa/ferriqa/internal/models"
)

// classifyTransportError maps a failed http.Client.Do error to a transport
// error kind. The kind drives retry eligibility downstream, so classification
// must stay stable even though it matches on error strings.
func classifyTransportError(err error) *models.TransportError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	kind := models.TransportErrorNetwork

	switch {
	case strings.Contains(errStr, "no such host"):
		kind = models.TransportErrorDNS
	case strings.Contains(errStr, "connection refused"):
		kind = models.TransportErrorConnectionRefused
	case strings.Contains(errStr, "connection reset"):
		kind = models.TransportErrorConnectionReset
	case strings.Contains(errStr, "network is unreachable"):
		kind = models.TransportErrorNetworkUnreachable
	case strings.Contains(errStr, "i/o timeout"),
		strings.Contains(errStr, "context deadline exceeded"),
		strings.Contains(errStr, "Client.Timeout exceeded"):
		kind = models.TransportErrorTimeout
	case strings.Contains(errStr, "tls:"), strings.Contains(errStr, "x509:"):
		kind = models.TransportErrorTLS
	case strings.Contains(errStr, "too many redirects"), strings.Contains(errStr, "stopped after"):
		kind = models.TransportErrorRedirect
	}

	return &models.TransportError{Kind: kind, Message: errStr}
}

package webhook

import (
	"testing"
	"time"

	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	t.Run("exponential", func(t *testing.T) {
		policy := NewRetryPolicy(time.Second, 2)
		assert.Equal(t, 1*time.Second, policy.Delay(1))
		assert.Equal(t, 2*time.Second, policy.Delay(2))
		assert.Equal(t, 4*time.Second, policy.Delay(3))
		assert.Equal(t, 8*time.Second, policy.Delay(4))
	})

	t.Run("multiplier three", func(t *testing.T) {
		policy := NewRetryPolicy(500*time.Millisecond, 3)
		assert.Equal(t, 500*time.Millisecond, policy.Delay(1))
		assert.Equal(t, 1500*time.Millisecond, policy.Delay(2))
		assert.Equal(t, 4500*time.Millisecond, policy.Delay(3))
	})

	t.Run("multiplier one is constant", func(t *testing.T) {
		policy := NewRetryPolicy(2*time.Second, 1)
		assert.Equal(t, 2*time.Second, policy.Delay(1))
		assert.Equal(t, 2*time.Second, policy.Delay(5))
	})

	t.Run("defaults", func(t *testing.T) {
		policy := NewRetryPolicy(0, 0)
		assert.Equal(t, 1*time.Second, policy.Delay(1))
		assert.Equal(t, 2*time.Second, policy.Delay(2))
	})
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()
	policy := NewRetryPolicy(time.Second, 2)

	statusTests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{201, false},
		{400, false},
		{401, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range statusTests {
		assert.Equal(t, tc.want, policy.ShouldRetry(tc.status, nil), "status %d", tc.status)
	}

	transportTests := []struct {
		kind models.TransportErrorKind
		want bool
	}{
		{models.TransportErrorTimeout, true},
		{models.TransportErrorConnectionReset, true},
		{models.TransportErrorNetworkUnreachable, true},
		{models.TransportErrorNetwork, true},
		{models.TransportErrorDNS, false},
		{models.TransportErrorConnectionRefused, false},
		{models.TransportErrorTLS, false},
		{models.TransportErrorRedirect, false},
	}
	for _, tc := range transportTests {
		err := &models.TransportError{Kind: tc.kind, Message: "boom"}
		assert.Equal(t, tc.want, policy.ShouldRetry(0, err), "kind %s", tc.kind)
	}

	assert.False(t, policy.ShouldRetry(0, nil))
}

func TestRetryPolicy_IsFinalFailure(t *testing.T) {
	t.Parallel()
	policy := NewRetryPolicy(time.Second, 2)

	assert.False(t, policy.IsFinalFailure(1, 5))
	assert.False(t, policy.IsFinalFailure(4, 5))
	assert.True(t, policy.IsFinalFailure(5, 5))
	assert.True(t, policy.IsFinalFailure(6, 5))
}

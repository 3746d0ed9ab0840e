package backoff_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ferriqa/ferriqa/internal/backoff"
	"github.com/stretchr/testify/assert"
)

type testCase struct {
	retries int
	want    time.Duration
}

func testBackoff(t *testing.T, name string, bo backoff.Backoff, testCases []testCase) {
	t.Parallel()
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s.Duration(%d)", name, tc.retries), func(t *testing.T) {
			assert.Equal(t, tc.want, bo.Duration(tc.retries))
		})
	}
}

func TestBackoff_Exponential(t *testing.T) {
	t.Parallel()
	t.Run("ExponentialBackoff{Interval:time.Second,Base:2}", func(t *testing.T) {
		bo := &backoff.ExponentialBackoff{
			Interval: time.Second,
			Base:     2,
		}
		testCases := []testCase{
			{0, time.Second},
			{1, 2 * time.Second},
			{2, 4 * time.Second},
			{3, 8 * time.Second},
			{4, 16 * time.Second},
			{5, 32 * time.Second},
			{6, 64 * time.Second},
		}
		testBackoff(t, "ExponentialBackoff{Interval:time.Second,Base:2}", bo, testCases)
	})

	t.Run("ExponentialBackoff{Interval:500*time.Millisecond,Base:3}", func(t *testing.T) {
		bo := &backoff.ExponentialBackoff{
			Interval: 500 * time.Millisecond,
			Base:     3,
		}
		testCases := []testCase{
			{0, 500 * time.Millisecond},
			{1, 1500 * time.Millisecond},
			{2, 4500 * time.Millisecond},
			{3, 13500 * time.Millisecond},
			{4, 40500 * time.Millisecond},
		}
		testBackoff(t, "ExponentialBackoff{Interval:500*time.Millisecond,Base:3}", bo, testCases)
	})
}

func TestBackoff_Constant(t *testing.T) {
	bo := &backoff.ConstantBackoff{
		Interval: 30 * time.Second,
	}
	testCases := []testCase{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, 30 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	testBackoff(t, "ConstantBackoff{Interval:30*time.Second}", bo, testCases)
}

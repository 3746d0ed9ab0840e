package backoff

import "time"

// Backoff computes the wait duration before a given retry.
// The first retry passes retries == 0.
type Backoff interface {
	Duration(retries int) time.Duration
}

type ExponentialBackoff struct {
	Interval time.Duration
	Base     int
}

var _ Backoff = (*ExponentialBackoff)(nil)

func (b *ExponentialBackoff) Duration(retries int) time.Duration {
	d := b.Interval
	for i := 0; i < retries; i++ {
		d *= time.Duration(b.Base)
	}
	return d
}

type ConstantBackoff struct {
	Interval time.Duration
}

var _ Backoff = (*ConstantBackoff)(nil)

func (b *ConstantBackoff) Duration(_ int) time.Duration {
	return b.Interval
}

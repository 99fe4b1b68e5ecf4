// Package throttler gives the scheduler a way to pace remote calls. It
// mirrors the teacher's pkg/throttler shape (an object consulted before each
// unit of work, defaulting to a no-op) but repurposes it: the teacher
// throttles row copies against replication lag, and this engine has no
// replica to watch, so it throttles against a token bucket over remote
// entity-service calls instead.
package throttler

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttler is consulted by the scheduler before dispatching each unit of
// migration work.
type Throttler interface {
	// Wait blocks until the caller may proceed, or ctx is done.
	Wait(ctx context.Context) error
	// IsThrottled reports whether the throttler is currently holding back
	// work, for status reporting.
	IsThrottled() bool
	Open() error
	Close() error
}

// Noop never throttles. It is the default when no rate limit is
// configured.
type Noop struct{}

func (Noop) Wait(context.Context) error { return nil }
func (Noop) IsThrottled() bool          { return false }
func (Noop) Open() error                { return nil }
func (Noop) Close() error               { return nil }

var _ Throttler = Noop{}

// RateThrottler paces dispatch with a token bucket, protecting the remote
// entity service from a thundering herd of copy/mutate calls when a large
// worker pool is configured.
type RateThrottler struct {
	limiter *rate.Limiter
}

// NewRateThrottler returns a throttler allowing up to ratePerSecond calls
// per second, with bursts up to burst.
func NewRateThrottler(ratePerSecond float64, burst int) *RateThrottler {
	return &RateThrottler{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (t *RateThrottler) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

func (t *RateThrottler) IsThrottled() bool {
	return t.limiter.Tokens() < 1
}

func (t *RateThrottler) Open() error  { return nil }
func (t *RateThrottler) Close() error { return nil }

var _ Throttler = (*RateThrottler)(nil)

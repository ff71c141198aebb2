// Package ratelimit provides the single shared REST permit source
// gating all requests to the venue (spec.md §4.6): a token bucket with
// a configured refill rate whose Acquire blocks up to a bounded time
// and maps a timeout to apperrors.RateLimitExceeded.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
)

// Limiter wraps golang.org/x/time/rate with an acquire timeout and the
// typed error mapping the rest of the system expects.
type Limiter struct {
	rl      *rate.Limiter
	timeout time.Duration
}

// New creates a Limiter refilling at rps requests/second with the
// given burst capacity and acquire timeout; a non-positive
// acquireTimeout falls back to 5s.
func New(rps float64, burst int, acquireTimeout time.Duration) *Limiter {
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &Limiter{
		rl:      rate.NewLimiter(rate.Limit(rps), burst),
		timeout: acquireTimeout,
	}
}

// Acquire blocks until a permit is available or the limiter's timeout
// expires, whichever comes first. A context cancellation propagates
// as-is; a limiter timeout surfaces as RateLimitExceeded.
func (l *Limiter) Acquire(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.rl.Wait(cctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Wrap(apperrors.RateLimitExceeded, "rate limiter acquire timed out", err)
	}
	return nil
}

// Allow reports whether a request may proceed immediately without
// blocking, consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}

// SetLimit updates the refill rate at runtime, e.g. in response to
// venue weight headers.
func (l *Limiter) SetLimit(rps float64) {
	l.rl.SetLimit(rate.Limit(rps))
}

// Package breaker wraps REST calls to the venue in a circuit breaker
// so a sustained outage stops hammering the venue with doomed
// requests and retries instead surface a fast VenueUnavailable.
package breaker

import (
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/binance-marketintel/internal/apperrors"
)

// Breaker trips after three consecutive failures, or after a failure
// ratio above 5% once at least twenty requests have been observed in
// the rolling interval.
type Breaker struct {
	cb *cb.CircuitBreaker
}

func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker, mapping an open-circuit
// rejection to apperrors.VenueUnavailable.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
		return nil, apperrors.Wrap(apperrors.VenueUnavailable, "circuit breaker open", err)
	}
	return result, err
}

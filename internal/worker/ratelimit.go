package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles calls into the unit processor. A nil Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing perSecond calls per second.
// A non-positive rate disables limiting and returns nil.
func NewLimiter(perSecond int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Wait blocks until the next call is allowed
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"golang.org/x/sync/errgroup"
)

// Pool runs one batch of units at a time with bounded concurrency
type Pool struct {
	limit         int
	retryAttempts int
	retryDelay    time.Duration
	limiter       *Limiter
}

// Option configures a Pool
type Option func(*Pool)

// WithRetry retries failed work with exponential backoff
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Pool) {
		p.retryAttempts = attempts
		p.retryDelay = delay
	}
}

// WithLimiter throttles every work invocation, including retries
func WithLimiter(l *Limiter) Option {
	return func(p *Pool) {
		p.limiter = l
	}
}

// NewPool creates a pool that runs at most limit units at once
func NewPool(limit int, opts ...Option) *Pool {
	if limit < 1 {
		limit = 1
	}
	p := &Pool{limit: limit}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Limit returns the maximum number of concurrently running units
func (p *Pool) Limit() int {
	return p.limit
}

// WorkFunc is the function type for work items
type WorkFunc func(ctx context.Context, unit models.MigrationUnit) error

// ProgressCallback is called after each item settles
type ProgressCallback func(unit models.MigrationUnit, err error)

// RunBatch dispatches every unit and blocks until all of them have settled.
// Errors are returned by position; one failure never cancels its siblings.
func (p *Pool) RunBatch(ctx context.Context, units []models.MigrationUnit, work WorkFunc, progress ProgressCallback) []error {
	errors := make([]error, len(units))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.limit)

	for i, unit := range units {
		i, unit := i, unit // capture loop variables
		g.Go(func() error {
			err := p.executeWithRetry(ctx, unit, work)
			mu.Lock()
			errors[i] = err
			if progress != nil {
				progress(unit, err)
			}
			mu.Unlock()
			return nil // Don't propagate errors to stop other goroutines
		})
	}

	g.Wait()
	return errors
}

func (p *Pool) executeWithRetry(ctx context.Context, unit models.MigrationUnit, work WorkFunc) error {
	var lastErr error

	for attempt := 0; attempt <= p.retryAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		err := work(ctx, unit)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < p.retryAttempts {
			// Wait before retry with exponential backoff
			delay := p.retryDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}

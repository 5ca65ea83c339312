// -----------------------------------------------------------------------
// Rate limiter - concurrency slots plus a token bucket for external sources
// -----------------------------------------------------------------------

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxConcurrent     = 5
	DefaultRequestsPerSecond = 2.0
	DefaultMaxRetries        = 5
)

// DefaultBackoff is the delay schedule for rate-limited retries. The last
// entry repeats once the schedule is exhausted.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryObserver is told about every retry a Limiter schedules.
type RetryObserver func(source, reason string)

// Limiter gates calls to a shared external resource. A call needs both a
// concurrency slot and a token; the bucket holds MaxConcurrent tokens, starts
// full and refills continuously at RequestsPerSecond.
type Limiter struct {
	slots      *semaphore.Weighted
	bucket     *rate.Limiter
	maxRetries int
	backoff    []time.Duration
	sleep      SleepFunc
	onRetry    RetryObserver
	logger     arbor.ILogger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMaxRetries sets how many rate-limited retries Execute performs.
func WithMaxRetries(n int) Option {
	return func(l *Limiter) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// WithBackoff replaces the rate-limit backoff schedule.
func WithBackoff(delays []time.Duration) Option {
	return func(l *Limiter) {
		if len(delays) > 0 {
			l.backoff = delays
		}
	}
}

// WithSleep replaces the sleep used between retries.
func WithSleep(fn SleepFunc) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// WithRetryObserver registers a callback fired before each retry.
func WithRetryObserver(fn RetryObserver) Option {
	return func(l *Limiter) {
		l.onRetry = fn
	}
}

// NewLimiter creates a Limiter allowing maxConcurrent in-flight calls and
// requestsPerSecond sustained throughput.
func NewLimiter(maxConcurrent int, requestsPerSecond float64, logger arbor.ILogger, opts ...Option) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}

	l := &Limiter{
		slots:      semaphore.NewWeighted(int64(maxConcurrent)),
		bucket:     rate.NewLimiter(rate.Limit(requestsPerSecond), maxConcurrent),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		sleep:      Sleep,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}

	logger.Info().
		Int("max_concurrent", maxConcurrent).
		Float64("requests_per_second", requestsPerSecond).
		Int("max_retries", l.maxRetries).
		Msg("Rate limiter initialized")

	return l
}

// Acquire blocks until a concurrency slot and a token are both available.
// If waiting for the token fails the slot is handed back.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	if err := l.bucket.Wait(ctx); err != nil {
		l.slots.Release(1)
		return fmt.Errorf("acquire token: %w", err)
	}
	return nil
}

// Release returns a concurrency slot.
func (l *Limiter) Release() {
	l.slots.Release(1)
}

func (l *Limiter) retryDelay(retryAfter time.Duration, attempt int) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	if attempt < len(l.backoff) {
		return l.backoff[attempt]
	}
	return l.backoff[len(l.backoff)-1]
}

func (l *Limiter) notifyRetry(source, reason string) {
	if l.onRetry != nil {
		l.onRetry(source, reason)
	}
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
)

// Execute runs fn under the limiter, retrying while it fails with
// models.ErrRateLimited. The delay is the error's RetryAfter hint when
// present, otherwise the backoff schedule. After the retry budget is spent
// the last error is returned. The slot is released after every attempt.
func Execute[T any](ctx context.Context, l *Limiter, ticker, source string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := l.Acquire(ctx); err != nil {
			return zero, err
		}
		result, err := func() (T, error) {
			defer l.Release()
			return fn(ctx)
		}()
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, models.ErrRateLimited) {
			return zero, err
		}
		if attempt >= l.maxRetries {
			l.logger.Error().
				Str("ticker", ticker).
				Str("source", source).
				Int("retries", l.maxRetries).
				Msg("Rate limit retries exhausted")
			return zero, err
		}

		delay := l.retryDelay(models.RetryAfterHint(err), attempt)
		l.logger.Warn().
			Str("ticker", ticker).
			Str("source", source).
			Int("attempt", attempt+1).
			Int("max_retries", l.maxRetries).
			Dur("delay", delay).
			Msg("Rate limited, retrying")
		l.notifyRetry(source, "rate_limited")

		if err := l.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

const (
	// FetchAttempts is the number of tries FetchWithRetry makes.
	FetchAttempts = 3
	// FetchTimeout bounds a single FetchWithRetry attempt.
	FetchTimeout = 30 * time.Second
)

// FetchBackoff is the delay between FetchWithRetry attempts.
var FetchBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// FetchWithRetry calls fn up to FetchAttempts times, each under the limiter
// and a FetchTimeout deadline. models.ErrTickerNotFound and
// models.ErrInsufficientData are returned at once. Any other failure,
// including a per-attempt timeout, is retried after the FetchBackoff delay,
// with no wait after the final attempt. Exhaustion yields a
// *models.DataFetchError wrapping models.ErrDataSourceUnavailable.
func FetchWithRetry[T any](ctx context.Context, l *Limiter, ticker, source, label string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < FetchAttempts; attempt++ {
		if err := l.Acquire(ctx); err != nil {
			return zero, err
		}
		result, err := func() (T, error) {
			defer l.Release()
			attemptCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
			defer cancel()
			return fn(attemptCtx)
		}()
		if err == nil {
			return result, nil
		}
		if errors.Is(err, models.ErrTickerNotFound) || errors.Is(err, models.ErrInsufficientData) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		lastErr = err
		event := l.logger.Warn().
			Str("ticker", ticker).
			Str("source", source).
			Int("attempt", attempt+1).
			Int("max_attempts", FetchAttempts)
		if errors.Is(err, context.DeadlineExceeded) {
			event.Msg(label + " timed out")
		} else {
			event.Err(err).Msg(label + " failed")
		}

		if attempt == FetchAttempts-1 {
			break
		}
		l.notifyRetry(source, "fetch_failed")
		if err := l.sleep(ctx, FetchBackoff[attempt]); err != nil {
			return zero, err
		}
	}

	l.logger.Error().
		Str("ticker", ticker).
		Str("source", source).
		Err(lastErr).
		Msg(label + " failed after all attempts")
	return zero, &models.DataFetchError{
		Ticker: ticker,
		Source: source,
		Err:    fmt.Errorf("%w: %d attempts: %v", models.ErrDataSourceUnavailable, FetchAttempts, lastErr),
	}
}

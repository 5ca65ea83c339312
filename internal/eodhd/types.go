// Package eodhd provides a client for the EODHD (End of Day Historical Data) API.
// It covers the endpoints the scanner needs: daily bars, option chains, the
// earnings calendar and real-time quotes.
package eodhd

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
)

// QueryOption represents an optional parameter for API queries.
type QueryOption func(*queryParams)

// queryParams holds optional query parameters.
type queryParams struct {
	From   time.Time
	To     time.Time
	Period string // d, w, m
	Order  string // a (asc), d (desc)
}

// WithDateRange sets the date range for the query.
func WithDateRange(from, to time.Time) QueryOption {
	return func(p *queryParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the period (d=daily, w=weekly, m=monthly).
func WithPeriod(period string) QueryOption {
	return func(p *queryParams) {
		p.Period = period
	}
}

// WithOrder sets the order (a=ascending, d=descending).
func WithOrder(order string) QueryOption {
	return func(p *queryParams) {
		p.Order = order
	}
}

// APIError represents a non-success response from the EODHD API.
// A 404 unwraps to models.ErrTickerNotFound.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", strings.TrimSpace(e.Message), e.StatusCode, e.Endpoint)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return models.ErrTickerNotFound
	}
	return nil
}

// RateLimitError is returned for HTTP 429. It unwraps to models.ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
	Endpoint   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limit exceeded on %s, retry after %v", e.Endpoint, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return models.ErrRateLimited
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// -----------------------------------------------------------------------
// Errors - sentinel errors shared by the market data and scan paths
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTickerNotFound means the upstream source does not know the symbol. Never retried.
	ErrTickerNotFound = errors.New("ticker not found")
	// ErrInsufficientData means the source answered but with too little data to use. Never retried.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDataSourceUnavailable means retries against the source were exhausted.
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	// ErrRateLimited means the source asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// DataFetchError carries the ticker and source of a failed fetch alongside
// one of the sentinels above.
type DataFetchError struct {
	Ticker     string
	Source     string
	HTTPStatus int
	RetryAfter time.Duration
	Err        error
}

func (e *DataFetchError) Error() string {
	msg := fmt.Sprintf("%s fetch for %s failed", e.Source, e.Ticker)
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (status %d)", e.HTTPStatus)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

// RetryAfterHint extracts a server-provided retry delay from err, or zero.
func RetryAfterHint(err error) time.Duration {
	var dfe *DataFetchError
	if errors.As(err, &dfe) {
		return dfe.RetryAfter
	}
	return 0
}

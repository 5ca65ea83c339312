// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"regexp"
	"strings"
)

// Ticker represents a parsed, exchange-qualified equity symbol.
type Ticker struct {
	// Code is the symbol (e.g., "AAPL", "BRK-B")
	Code string
	// Exchange is the EODHD exchange suffix without the dot (e.g., "US")
	Exchange string
	// Raw is the original input
	Raw string
}

// DefaultExchange is the EODHD suffix used for tickers given without one.
const DefaultExchange = "US"

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9\-]{0,9}$`)

// ParseTicker parses a ticker string.
// Supports formats:
//   - "AAPL" -> Code="AAPL", Exchange="US"
//   - "aapl.us" -> Code="AAPL", Exchange="US"
//   - "BRK.B" -> Code="BRK-B", Exchange="US" (share class dot mapped to dash)
//   - "NYSE:AAPL" -> Code="AAPL", Exchange="US"
func ParseTicker(ticker string) Ticker {
	raw := ticker
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Ticker{}
	}

	// US venue prefixes collapse onto the single EODHD US suffix
	if idx := strings.Index(ticker, ":"); idx > 0 {
		ticker = ticker[idx+1:]
	}

	exchange := DefaultExchange
	if idx := strings.LastIndex(ticker, "."); idx > 0 && idx < len(ticker)-1 {
		suffix := ticker[idx+1:]
		if len(suffix) >= 2 {
			exchange = suffix
			ticker = ticker[:idx]
		}
	}

	return Ticker{
		Code:     strings.ReplaceAll(ticker, ".", "-"),
		Exchange: exchange,
		Raw:      raw,
	}
}

// String returns the bare symbol.
func (t Ticker) String() string {
	return t.Code
}

// EODHDSymbol returns the EODHD API symbol format.
// Example: "AAPL" -> "AAPL.US"
func (t Ticker) EODHDSymbol() string {
	if t.Code == "" {
		return ""
	}
	return t.Code + "." + t.Exchange
}

// Validate reports whether the symbol is well formed.
func (t Ticker) Validate() error {
	if !tickerPattern.MatchString(t.Code) {
		return fmt.Errorf("invalid ticker %q", t.Raw)
	}
	return nil
}

// NormalizeTickers parses, validates and de-duplicates a list of tickers,
// preserving first-seen order. Invalid entries are returned separately.
func NormalizeTickers(tickers []string) (valid []string, invalid []string) {
	seen := make(map[string]bool, len(tickers))
	for _, raw := range tickers {
		t := ParseTicker(raw)
		if err := t.Validate(); err != nil {
			if strings.TrimSpace(raw) != "" {
				invalid = append(invalid, raw)
			}
			continue
		}
		if seen[t.Code] {
			continue
		}
		seen[t.Code] = true
		valid = append(valid, t.Code)
	}
	return valid, invalid
}

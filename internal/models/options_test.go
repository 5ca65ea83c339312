package models

import (
	"testing"
	"time"
)

func TestGreeksValidate(t *testing.T) {
	tests := []struct {
		name    string
		greeks  Greeks
		wantErr bool
	}{
		{name: "valid call", greeks: Greeks{Delta: 0.35, Gamma: 0.02, Theta: -0.05, Vega: 0.12, Rho: 0.01}},
		{name: "valid put", greeks: Greeks{Delta: -0.35, Gamma: 0.02, Vega: 0.12}},
		{name: "delta bounds inclusive", greeks: Greeks{Delta: -1}},
		{name: "delta above one", greeks: Greeks{Delta: 1.2}, wantErr: true},
		{name: "negative gamma", greeks: Greeks{Delta: 0.5, Gamma: -0.01}, wantErr: true},
		{name: "negative vega", greeks: Greeks{Delta: 0.5, Vega: -0.1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.greeks.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionContractDerived(t *testing.T) {
	today := time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC)
	c := OptionContract{
		Ticker:     "AAPL",
		OptionType: OptionTypeCall,
		Strike:     190,
		Expiration: time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC),
		Bid:        2.10,
		Ask:        2.30,
	}

	if got := c.Mid(); got < 2.1999 || got > 2.2001 {
		t.Errorf("Mid() = %v, want 2.20", got)
	}
	if got := c.Spread(); got < 0.1999 || got > 0.2001 {
		t.Errorf("Spread() = %v, want 0.20", got)
	}
	if got := c.DTE(today); got != 45 {
		t.Errorf("DTE() = %d, want 45", got)
	}
	if got := c.Symbol(); got != "AAPL 2025-02-24 190.00 call" {
		t.Errorf("Symbol() = %q", got)
	}
}

func TestOptionContractValidate(t *testing.T) {
	base := OptionContract{
		Ticker:     "SPY",
		OptionType: OptionTypePut,
		Strike:     500,
		Expiration: time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC),
		Bid:        1,
		Ask:        1.1,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	bad := base
	bad.Greeks = &Greeks{Delta: -1.5}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() expected error for out of range delta")
	}

	badType := base
	badType.OptionType = "straddle"
	if err := badType.Validate(); err == nil {
		t.Error("Validate() expected error for unknown option type")
	}
}

func TestParseSignalDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    SignalDirection
		wantErr bool
	}{
		{in: "bullish", want: DirectionBullish},
		{in: " BEARISH ", want: DirectionBearish},
		{in: "Neutral", want: DirectionNeutral},
		{in: "sideways", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSignalDirection(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSignalDirection() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSignalDirection() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDataFetchErrorUnwrap(t *testing.T) {
	err := &DataFetchError{Ticker: "XYZ", Source: "eodhd", HTTPStatus: 429, RetryAfter: 3 * time.Second, Err: ErrRateLimited}
	if got := RetryAfterHint(err); got != 3*time.Second {
		t.Errorf("RetryAfterHint() = %v, want 3s", got)
	}
	if got := err.Error(); got != "eodhd fetch for XYZ failed (status 429): rate limited" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDaysBetween(t *testing.T) {
	expiry := time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		from   time.Time
		target time.Time
		want   int
	}{
		{"morning session", time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC), expiry, 45},
		{"evening after the UTC rollover", time.Date(2025, 1, 11, 1, 30, 0, 0, time.UTC), expiry, 45},
		{"date only reference", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), expiry, 45},
		{"daylight saving evening", time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC), time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC), 7},
		{"local exchange time", time.Date(2025, 1, 10, 23, 59, 0, 0, ExchangeLocation), expiry, 45},
		{"past date", time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC), time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.from, tt.target); got != tt.want {
				t.Errorf("DaysBetween(%v, %v) = %d, want %d", tt.from, tt.target, got, tt.want)
			}
		})
	}
}

func TestTradingDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2025, 1, 11, 1, 30, 0, 0, time.UTC), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := TradingDate(tt.in); !got.Equal(tt.want) {
			t.Errorf("TradingDate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// -----------------------------------------------------------------------
// Options - option contract snapshots and Greeks
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Greeks are the option sensitivities reported for a contract.
// Range checks reject garbage from upstream providers.
type Greeks struct {
	Delta float64 `json:"delta" validate:"gte=-1,lte=1"`
	Gamma float64 `json:"gamma" validate:"gte=0"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega" validate:"gte=0"`
	Rho   float64 `json:"rho"`
}

// Validate checks the Greek ranges.
func (g Greeks) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("invalid greeks: %w", err)
	}
	return nil
}

// OptionContract is a point-in-time snapshot of one listed option.
// Values are never mutated after construction.
type OptionContract struct {
	Ticker            string        `json:"ticker" validate:"required"`
	OptionType        OptionType    `json:"option_type" validate:"oneof=call put"`
	Strike            float64       `json:"strike" validate:"gt=0"`
	Expiration        time.Time     `json:"expiration" validate:"required"`
	Bid               float64       `json:"bid" validate:"gte=0"`
	Ask               float64       `json:"ask" validate:"gte=0"`
	Last              float64       `json:"last" validate:"gte=0"`
	Volume            int64         `json:"volume" validate:"gte=0"`
	OpenInterest      int64         `json:"open_interest" validate:"gte=0"`
	ImpliedVolatility float64       `json:"implied_volatility" validate:"gte=0"`
	Greeks            *Greeks       `json:"greeks,omitempty"`
	GreeksSource      *GreeksSource `json:"greeks_source,omitempty"`
}

// Validate checks field ranges, including the nested Greeks when present.
func (c OptionContract) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid contract %s: %w", c.Symbol(), err)
	}
	if c.Greeks != nil {
		if err := c.Greeks.Validate(); err != nil {
			return fmt.Errorf("invalid contract %s: %w", c.Symbol(), err)
		}
	}
	return nil
}

// Mid is the bid/ask midpoint.
func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// Spread is ask minus bid.
func (c OptionContract) Spread() float64 {
	return c.Ask - c.Bid
}

// DTE returns whole calendar days from today until expiration.
func (c OptionContract) DTE(today time.Time) int {
	return DaysBetween(today, c.Expiration)
}

// Symbol renders a readable contract identifier such as "AAPL 2025-03-21 190.00 call".
func (c OptionContract) Symbol() string {
	return fmt.Sprintf("%s %s %.2f %s", c.Ticker, c.Expiration.Format("2006-01-02"), c.Strike, c.OptionType)
}

// ExchangeLocation is the time zone of the US options calendar.
var ExchangeLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// TradingDate returns the exchange calendar date of t as midnight UTC, the
// form expirations and report dates are stored in. A value already at
// midnight UTC is a date and is returned unchanged.
func TradingDate(t time.Time) time.Time {
	if isDateOnly(t) {
		return t.UTC()
	}
	y, m, d := t.In(ExchangeLocation).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from the reference a to the date b.
// a is read on the exchange calendar; b is a date such as an expiration.
func DaysBetween(a, b time.Time) int {
	da := TradingDate(a)
	db := truncateDate(b)
	return int(db.Sub(da).Hours() / 24)
}

func isDateOnly(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package eodhd

import (
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
)

// EODData represents a single day's end-of-day price data.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is a slice of EODData.
type EODResponse []EODData

// PriceBars converts the response, skipping rows with an unparseable date.
func (r EODResponse) PriceBars() []models.PriceBar {
	bars := make([]models.PriceBar, 0, len(r))
	for _, d := range r {
		if d.Date.IsZero() {
			continue
		}
		bars = append(bars, models.PriceBar{
			Date:   d.Date,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: d.Volume,
		})
	}
	return bars
}

// OptionQuote is one contract row of an option chain response.
type OptionQuote struct {
	ContractName      string   `json:"contractName"`
	Type              string   `json:"type"`
	ExpirationDate    string   `json:"expirationDate"`
	Strike            float64  `json:"strike"`
	LastPrice         float64  `json:"lastPrice"`
	Bid               float64  `json:"bid"`
	Ask               float64  `json:"ask"`
	Volume            float64  `json:"volume"`
	OpenInterest      float64  `json:"openInterest"`
	ImpliedVolatility float64  `json:"impliedVolatility"` // percent
	Delta             *float64 `json:"delta"`
	Gamma             *float64 `json:"gamma"`
	Theta             *float64 `json:"theta"`
	Vega              *float64 `json:"vega"`
	Rho               *float64 `json:"rho"`
}

// OptionExpiry groups the contracts of one expiration.
type OptionExpiry struct {
	ExpirationDate    string                   `json:"expirationDate"`
	ImpliedVolatility float64                  `json:"impliedVolatility"`
	PutVolume         float64                  `json:"putVolume"`
	CallVolume        float64                  `json:"callVolume"`
	Options           map[string][]OptionQuote `json:"options"`
}

// OptionChainResponse is the /options/{symbol} payload.
type OptionChainResponse struct {
	Code           string         `json:"code"`
	Exchange       string         `json:"exchange"`
	LastTradeDate  string         `json:"lastTradeDate"`
	LastTradePrice float64        `json:"lastTradePrice"`
	Data           []OptionExpiry `json:"data"`
}

var chainSides = []string{"CALL", "PUT"}

// Contracts flattens the chain into option contracts. Rows with an unknown
// type or unparseable expiration are skipped. Greeks are attached only when
// all five are present.
func (r *OptionChainResponse) Contracts(ticker string) []models.OptionContract {
	var out []models.OptionContract
	for _, expiry := range r.Data {
		for _, side := range chainSides {
			for _, q := range expiry.Options[side] {
				typ := q.Type
				if typ == "" {
					typ = side
				}
				optionType, err := models.ParseOptionType(strings.ToLower(typ))
				if err != nil {
					continue
				}
				expStr := q.ExpirationDate
				if expStr == "" {
					expStr = expiry.ExpirationDate
				}
				exp, err := time.Parse("2006-01-02", expStr)
				if err != nil {
					continue
				}

				c := models.OptionContract{
					Ticker:            ticker,
					OptionType:        optionType,
					Strike:            q.Strike,
					Expiration:        exp,
					Bid:               q.Bid,
					Ask:               q.Ask,
					Last:              q.LastPrice,
					Volume:            int64(q.Volume),
					OpenInterest:      int64(q.OpenInterest),
					ImpliedVolatility: q.ImpliedVolatility / 100,
				}
				if g := q.greeks(); g != nil {
					c.Greeks = g
					src := models.GreeksSourceMarket
					c.GreeksSource = &src
				}
				out = append(out, c)
			}
		}
	}
	return out
}

func (q OptionQuote) greeks() *models.Greeks {
	if q.Delta == nil || q.Gamma == nil || q.Theta == nil || q.Vega == nil || q.Rho == nil {
		return nil
	}
	return &models.Greeks{
		Delta: *q.Delta,
		Gamma: *q.Gamma,
		Theta: *q.Theta,
		Vega:  *q.Vega,
		Rho:   *q.Rho,
	}
}

// EarningsEntry is one row of the earnings calendar.
type EarningsEntry struct {
	Code              string   `json:"code"`
	ReportDate        string   `json:"report_date"`
	Date              string   `json:"date"`
	BeforeAfterMarket string   `json:"before_after_market"`
	Currency          string   `json:"currency"`
	Actual            *float64 `json:"actual"`
	Estimate          *float64 `json:"estimate"`
}

// EarningsCalendarResponse is the /calendar/earnings payload.
type EarningsCalendarResponse struct {
	Type     string          `json:"type"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Earnings []EarningsEntry `json:"earnings"`
}

// NextReportDate returns the earliest report date on or after from for
// symbol, or nil.
func (r *EarningsCalendarResponse) NextReportDate(symbol string, from time.Time) *time.Time {
	fromDay := from.UTC().Truncate(24 * time.Hour)
	var next *time.Time
	for _, e := range r.Earnings {
		if symbol != "" && !strings.EqualFold(e.Code, symbol) {
			continue
		}
		d, err := time.Parse("2006-01-02", e.ReportDate)
		if err != nil || d.Before(fromDay) {
			continue
		}
		if next == nil || d.Before(*next) {
			day := d
			next = &day
		}
	}
	return next
}

// RealTimeQuote is the /real-time/{symbol} payload.
type RealTimeQuote struct {
	Code          string  `json:"code"`
	Timestamp     int64   `json:"timestamp"`
	GMTOffset     int     `json:"gmtoffset"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_p"`
}

// Quote converts to the shared quote model. EODHD reports no bid or ask here.
func (q *RealTimeQuote) Quote(ticker string) models.Quote {
	return models.Quote{
		Ticker:    ticker,
		Last:      q.Close,
		Volume:    q.Volume,
		Timestamp: time.Unix(q.Timestamp, 0).UTC(),
	}
}

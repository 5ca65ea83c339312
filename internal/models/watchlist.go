package models

import "time"

// DefaultWatchlistName names the watchlist an empty scan request falls back to.
const DefaultWatchlistName = "default"

// Watchlist is a named, persisted set of tickers. Tickers are kept
// upper-cased, unique and sorted.
type Watchlist struct {
	ID        string    `json:"id" badgerhold:"key"`
	Name      string    `json:"name" badgerhold:"index"`
	Tickers   []string  `json:"tickers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

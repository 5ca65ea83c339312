package models

import "time"

// Scan run status values.
const (
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
)

// TickerScore is one ranked entry of a scored universe. Signals holds the
// normalized, inverted values the score was computed from.
type TickerScore struct {
	Ticker  string             `json:"ticker"`
	Score   float64            `json:"score"`
	Signals map[string]float64 `json:"signals"`
	Rank    int                `json:"rank"`
}

// ScanRun records one execution of the scan pipeline.
type ScanRun struct {
	ID          string     `json:"id" badgerhold:"key"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	TickerCount int        `json:"ticker_count"`
	TopN        int        `json:"top_n"`
}

// ScoreRecord is a persisted TickerScore belonging to a scan run.
type ScoreRecord struct {
	ID             string             `json:"id" badgerhold:"key"`
	ScanID         string             `json:"scan_id" badgerhold:"index"`
	Ticker         string             `json:"ticker" badgerhold:"index"`
	Score          float64            `json:"score"`
	Rank           int                `json:"rank"`
	Signals        map[string]float64 `json:"signals"`
	Direction      SignalDirection    `json:"direction"`
	Recommendation *OptionContract    `json:"recommendation,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// TickerScore returns the score portion of the record.
func (r ScoreRecord) TickerScore() TickerScore {
	return TickerScore{Ticker: r.Ticker, Score: r.Score, Signals: r.Signals, Rank: r.Rank}
}

package common

import (
	"github.com/google/uuid"
)

// NewScanID generates a unique scan run ID
// Format: scan_<uuid>
func NewScanID() string {
	return "scan_" + uuid.New().String()
}

// NewThesisID generates a unique debate thesis ID
// Format: thesis_<uuid>
func NewThesisID() string {
	return "thesis_" + uuid.New().String()
}

// NewWatchlistID generates a unique watchlist ID
// Format: wl_<uuid>
func NewWatchlistID() string {
	return "wl_" + uuid.New().String()
}

// NewScoreID derives the key for one ticker's score within a scan
func NewScoreID(scanID, ticker string) string {
	return scanID + ":" + ticker
}

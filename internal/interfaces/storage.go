package interfaces

import (
	"context"
	"errors"

	"github.com/jobu711/optionalpha/internal/models"
)

// ErrRecordNotFound is returned when a lookup matches nothing
var ErrRecordNotFound = errors.New("record not found")

// ErrRecordExists is returned when a create collides with a unique name
var ErrRecordExists = errors.New("record already exists")

// ThesisStorage - interface for debate thesis persistence
type ThesisStorage interface {
	SaveThesis(ctx context.Context, ticker string, thesis models.TradeThesis) error
	GetLatestThesis(ctx context.Context, ticker string) (*models.ThesisRecord, error)
	ListTheses(ctx context.Context, ticker string, limit int) ([]models.ThesisRecord, error)
}

// ScanStorage - interface for scan runs and their ranked scores
type ScanStorage interface {
	SaveScanRun(ctx context.Context, run *models.ScanRun) error
	GetScanRun(ctx context.Context, id string) (*models.ScanRun, error)
	ListScanRuns(ctx context.Context, limit int) ([]models.ScanRun, error)
	SaveScores(ctx context.Context, scanID string, records []models.ScoreRecord) error
	GetScores(ctx context.Context, scanID string) ([]models.ScoreRecord, error)
	// TickerHistory returns a ticker's scores across scans, newest first.
	// limit <= 0 returns all.
	TickerHistory(ctx context.Context, ticker string, limit int) ([]models.ScoreRecord, error)
}

// WatchlistStorage - interface for named ticker watchlists
type WatchlistStorage interface {
	CreateWatchlist(ctx context.Context, name string, tickers []string) (*models.Watchlist, error)
	GetWatchlist(ctx context.Context, id string) (*models.Watchlist, error)
	GetWatchlistByName(ctx context.Context, name string) (*models.Watchlist, error)
	ListWatchlists(ctx context.Context) ([]models.Watchlist, error)
	AddTickers(ctx context.Context, id string, tickers []string) (*models.Watchlist, error)
	RemoveTickers(ctx context.Context, id string, tickers []string) (*models.Watchlist, error)
	DeleteWatchlist(ctx context.Context, id string) error
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	ThesisStorage() ThesisStorage
	ScanStorage() ScanStorage
	WatchlistStorage() WatchlistStorage
	DB() interface{}
	Close() error
}

package badger

import (
	"context"
	"fmt"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ScanStorage implements the ScanStorage interface for Badger
type ScanStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScanStorage creates a new ScanStorage instance
func NewScanStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScanStorage {
	return &ScanStorage{
		db:     db,
		logger: logger,
	}
}

// SaveScanRun inserts or updates a scan run
func (s *ScanStorage) SaveScanRun(ctx context.Context, run *models.ScanRun) error {
	if run.ID == "" {
		return fmt.Errorf("scan run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save scan run: %w", err)
	}
	return nil
}

// GetScanRun retrieves a scan run by ID
func (s *ScanStorage) GetScanRun(ctx context.Context, id string) (*models.ScanRun, error) {
	var run models.ScanRun
	err := s.db.Store().Get(id, &run)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("scan run %s: %w", id, interfaces.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}
	return &run, nil
}

// ListScanRuns returns scan runs, newest first. limit <= 0 returns all.
func (s *ScanStorage) ListScanRuns(ctx context.Context, limit int) ([]models.ScanRun, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.ScanRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	return runs, nil
}

// SaveScores stores the ranked scores of one scan in a single transaction.
// Each record is keyed by scan and ticker so a re-save replaces it.
func (s *ScanStorage) SaveScores(ctx context.Context, scanID string, records []models.ScoreRecord) error {
	if scanID == "" {
		return fmt.Errorf("scan ID is required")
	}

	tx := s.db.Store().Badger().NewTransaction(true)
	defer tx.Discard()

	for i := range records {
		record := records[i]
		record.ScanID = scanID
		record.ID = common.NewScoreID(scanID, record.Ticker)
		if err := s.db.Store().TxUpsert(tx, record.ID, &record); err != nil {
			return fmt.Errorf("failed to save score for %s: %w", record.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}

	s.logger.Debug().Str("scan_id", scanID).Int("count", len(records)).Msg("Saved ticker scores")
	return nil
}

// GetScores returns the scores of one scan ordered by rank
func (s *ScanStorage) GetScores(ctx context.Context, scanID string) ([]models.ScoreRecord, error) {
	var records []models.ScoreRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("ScanID").Eq(scanID).SortBy("Rank")); err != nil {
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	return records, nil
}

// TickerHistory returns a ticker's scores across scans, newest first.
// limit <= 0 returns all.
func (s *ScanStorage) TickerHistory(ctx context.Context, ticker string, limit int) ([]models.ScoreRecord, error) {
	ticker = common.ParseTicker(ticker).Code
	query := badgerhold.Where("Ticker").Eq(ticker).Index("Ticker").SortBy("CreatedAt", "ScanID").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.ScoreRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", ticker, err)
	}
	return records, nil
}

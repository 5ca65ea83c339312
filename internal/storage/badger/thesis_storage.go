package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ThesisStorage implements the ThesisStorage interface for Badger
type ThesisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewThesisStorage creates a new ThesisStorage instance
func NewThesisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ThesisStorage {
	return &ThesisStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SaveThesis appends a thesis for ticker. Earlier theses are kept.
func (s *ThesisStorage) SaveThesis(ctx context.Context, ticker string, thesis models.TradeThesis) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("thesis ticker is required")
	}

	record := models.ThesisRecord{
		ID:        common.NewThesisID(),
		Ticker:    ticker,
		Thesis:    thesis,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.Store().Upsert(record.ID, &record); err != nil {
		return fmt.Errorf("failed to save thesis: %w", err)
	}

	s.logger.Debug().Str("ticker", ticker).Str("id", record.ID).Msg("Saved thesis")
	return nil
}

// GetLatestThesis returns the most recently saved thesis for ticker
func (s *ThesisStorage) GetLatestThesis(ctx context.Context, ticker string) (*models.ThesisRecord, error) {
	records, err := s.ListTheses(ctx, ticker, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("thesis for %s: %w", ticker, interfaces.ErrRecordNotFound)
	}
	return &records[0], nil
}

// ListTheses returns theses for ticker, newest first. limit <= 0 returns all.
func (s *ThesisStorage) ListTheses(ctx context.Context, ticker string, limit int) ([]models.ThesisRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	query := badgerhold.Where("Ticker").Eq(ticker).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.ThesisRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list theses: %w", err)
	}
	return records, nil
}

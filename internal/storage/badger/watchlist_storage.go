package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// WatchlistStorage implements the WatchlistStorage interface for Badger.
// Ticker edits are read-modify-write and serialized by mu.
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
	mu     sync.Mutex
}

// NewWatchlistStorage creates a new WatchlistStorage instance
func NewWatchlistStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStorage {
	return &WatchlistStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// CreateWatchlist stores a new watchlist. Names are unique.
func (s *WatchlistStorage) CreateWatchlist(ctx context.Context, name string, tickers []string) (*models.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("watchlist name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetWatchlistByName(ctx, name); err == nil {
		return nil, fmt.Errorf("watchlist %q: %w", name, interfaces.ErrRecordExists)
	}

	now := s.now().UTC()
	list := &models.Watchlist{
		ID:        common.NewWatchlistID(),
		Name:      name,
		Tickers:   mergeTickers(nil, tickers),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.Store().Insert(list.ID, list); err != nil {
		return nil, fmt.Errorf("failed to create watchlist: %w", err)
	}

	s.logger.Debug().Str("id", list.ID).Str("name", name).Int("tickers", len(list.Tickers)).Msg("Created watchlist")
	return list, nil
}

// GetWatchlist retrieves a watchlist by ID
func (s *WatchlistStorage) GetWatchlist(ctx context.Context, id string) (*models.Watchlist, error) {
	var list models.Watchlist
	err := s.db.Store().Get(id, &list)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("watchlist %s: %w", id, interfaces.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	if list.Tickers == nil {
		list.Tickers = []string{}
	}
	return &list, nil
}

// GetWatchlistByName retrieves a watchlist by its exact name
func (s *WatchlistStorage) GetWatchlistByName(ctx context.Context, name string) (*models.Watchlist, error) {
	var lists []models.Watchlist
	if err := s.db.Store().Find(&lists, badgerhold.Where("Name").Eq(strings.TrimSpace(name)).Index("Name")); err != nil {
		return nil, fmt.Errorf("failed to find watchlist: %w", err)
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("watchlist %q: %w", name, interfaces.ErrRecordNotFound)
	}
	return &lists[0], nil
}

// ListWatchlists returns all watchlists ordered by name
func (s *WatchlistStorage) ListWatchlists(ctx context.Context) ([]models.Watchlist, error) {
	var lists []models.Watchlist
	if err := s.db.Store().Find(&lists, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	for i := range lists {
		if lists[i].Tickers == nil {
			lists[i].Tickers = []string{}
		}
	}
	return lists, nil
}

// AddTickers adds tickers to a watchlist. Tickers already present are ignored.
func (s *WatchlistStorage) AddTickers(ctx context.Context, id string, tickers []string) (*models.Watchlist, error) {
	return s.update(ctx, id, func(list *models.Watchlist) {
		list.Tickers = mergeTickers(list.Tickers, tickers)
	})
}

// RemoveTickers removes tickers from a watchlist. Absent tickers are ignored.
func (s *WatchlistStorage) RemoveTickers(ctx context.Context, id string, tickers []string) (*models.Watchlist, error) {
	return s.update(ctx, id, func(list *models.Watchlist) {
		drop := make(map[string]bool, len(tickers))
		for _, t := range tickers {
			drop[common.ParseTicker(t).Code] = true
		}
		kept := list.Tickers[:0]
		for _, t := range list.Tickers {
			if !drop[t] {
				kept = append(kept, t)
			}
		}
		list.Tickers = append([]string{}, kept...)
	})
}

// DeleteWatchlist removes a watchlist
func (s *WatchlistStorage) DeleteWatchlist(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Store().Delete(id, models.Watchlist{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("watchlist %s: %w", id, interfaces.ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete watchlist: %w", err)
	}
	return nil
}

func (s *WatchlistStorage) update(ctx context.Context, id string, edit func(*models.Watchlist)) (*models.Watchlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.GetWatchlist(ctx, id)
	if err != nil {
		return nil, err
	}
	edit(list)
	list.UpdatedAt = s.now().UTC()

	if err := s.db.Store().Update(list.ID, list); err != nil {
		return nil, fmt.Errorf("failed to update watchlist: %w", err)
	}
	return list, nil
}

// mergeTickers returns the sorted union of existing and the valid entries of
// added. Invalid symbols are dropped.
func mergeTickers(existing, added []string) []string {
	valid, _ := common.NormalizeTickers(append(append([]string{}, existing...), added...))
	if valid == nil {
		valid = []string{}
	}
	sort.Strings(valid)
	return valid
}

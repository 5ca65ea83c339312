package badger

import (
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	thesis interfaces.ThesisStorage
	scan   interfaces.ScanStorage
	lists  interfaces.WatchlistStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		thesis: NewThesisStorage(db, logger),
		scan:   NewScanStorage(db, logger),
		lists:  NewWatchlistStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ThesisStorage returns the Thesis storage interface
func (m *Manager) ThesisStorage() interfaces.ThesisStorage {
	return m.thesis
}

// ScanStorage returns the Scan storage interface
func (m *Manager) ScanStorage() interfaces.ScanStorage {
	return m.scan
}

// WatchlistStorage returns the Watchlist storage interface
func (m *Manager) WatchlistStorage() interfaces.WatchlistStorage {
	return m.lists
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

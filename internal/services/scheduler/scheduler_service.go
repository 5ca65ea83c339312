package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// ScanRunner runs one watchlist scan.
type ScanRunner interface {
	Run(ctx context.Context, req scan.Request, sink scan.ProgressSink) (*scan.Result, error)
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running   bool       `json:"running"`
	Schedule  string     `json:"schedule"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastScan  string     `json:"last_scan,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Service runs watchlist scans on a cron schedule. At most one scheduled scan
// runs at a time; a tick that finds one in progress is skipped.
type Service struct {
	scanner ScanRunner
	sink    scan.ProgressSink
	cron    *cron.Cron
	logger  arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex // Protects the fields below
	running      bool
	isProcessing bool
	schedule     string
	cronID       cron.EntryID
	lastRun      *time.Time
	lastScan     string
	lastError    string
}

// NewService creates a scheduler. sink receives progress of scheduled scans
// and may be nil.
func NewService(scanner ScanRunner, sink scan.ProgressSink, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		scanner: scanner,
		sink:    sink,
		cron:    cron.New(),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start schedules watchlist scans with a standard five-field cron expression.
func (s *Service) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if schedule == "" {
		return fmt.Errorf("empty schedule")
	}

	cronID, err := s.cron.AddFunc(schedule, s.runScheduledScan)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cronID = cronID
	s.schedule = schedule
	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", schedule).Msg("Scan scheduler started")
	return nil
}

// Stop halts the schedule and cancels a scan in flight. It waits for the
// running cron job to return.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()

	s.logger.Info().Msg("Scan scheduler stopped")
	return nil
}

// IsRunning reports whether the schedule is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the schedule and the outcome of the last scheduled scan.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:   s.running,
		Schedule:  s.schedule,
		LastRun:   s.lastRun,
		LastScan:  s.lastScan,
		LastError: s.lastError,
	}
	if s.running {
		if next := s.cron.Entry(s.cronID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// TriggerNow runs a scheduled scan immediately, in the background.
func (s *Service) TriggerNow() {
	common.SafeGo(s.logger, "triggeredScan", s.runScheduledScan)
}

func (s *Service) runScheduledScan() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in scheduled scan")
			s.finish("", fmt.Errorf("panic: %v", r))
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous scheduled scan still running, skipping this cycle")
		return
	}
	s.isProcessing = true
	s.mu.Unlock()

	s.logger.Info().Msg("Starting scheduled scan")

	result, err := s.scanner.Run(s.ctx, scan.Request{}, s.sink)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled scan failed")
		s.finish("", err)
		return
	}

	s.logger.Info().
		Str("scan_id", result.Run.ID).
		Int("scored", len(result.Scores)).
		Int64("elapsed_ms", result.Elapsed.Milliseconds()).
		Msg("Scheduled scan completed")
	s.finish(result.Run.ID, nil)
}

func (s *Service) finish(scanID string, err error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.isProcessing = false
	s.lastRun = &now
	s.lastScan = scanID
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}

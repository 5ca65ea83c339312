package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeScanner struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeScanner) Run(ctx context.Context, req scan.Request, sink scan.ProgressSink) (*scan.Result, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &scan.Result{Run: models.ScanRun{ID: "scan_1", Status: models.ScanStatusCompleted}}, nil
}

func TestRunScheduledScan_RecordsOutcome(t *testing.T) {
	scanner := &fakeScanner{}
	s := NewService(scanner, nil, arbor.NewLogger())

	s.runScheduledScan()

	status := s.Status()
	assert.Equal(t, int32(1), scanner.calls.Load())
	assert.Equal(t, "scan_1", status.LastScan)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastRun)

	scanner.err = errors.New("eodhd down")
	s.runScheduledScan()

	status = s.Status()
	assert.Empty(t, status.LastScan)
	assert.Equal(t, "eodhd down", status.LastError)
}

func TestRunScheduledScan_SkipsOverlap(t *testing.T) {
	scanner := &fakeScanner{release: make(chan struct{})}
	s := NewService(scanner, nil, arbor.NewLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runScheduledScan()
	}()

	require.Eventually(t, func() bool { return scanner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.runScheduledScan()
	assert.Equal(t, int32(1), scanner.calls.Load())

	close(scanner.release)
	wg.Wait()
	assert.Equal(t, "scan_1", s.Status().LastScan)
}

func TestStartStop(t *testing.T) {
	s := NewService(&fakeScanner{}, nil, arbor.NewLogger())

	assert.Error(t, s.Start(""))
	assert.Error(t, s.Start("not a cron"))

	require.NoError(t, s.Start("0 16 * * 1-5"))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start("0 16 * * 1-5"))

	status := s.Status()
	assert.Equal(t, "0 16 * * 1-5", status.Schedule)
	assert.NotNil(t, status.NextRun)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}

func TestStop_CancelsScanInFlight(t *testing.T) {
	scanner := &fakeScanner{release: make(chan struct{})}
	s := NewService(scanner, nil, arbor.NewLogger())
	require.NoError(t, s.Start("0 16 * * 1-5"))

	done := make(chan struct{})
	go func() {
		s.runScheduledScan()
		close(done)
	}()
	require.Eventually(t, func() bool { return scanner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled scan did not stop")
	}
	assert.Equal(t, context.Canceled.Error(), s.Status().LastError)
}

package app

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/eodhd"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// offlineSource knows no tickers.
type offlineSource struct{}

func (offlineSource) GetEOD(ctx context.Context, symbol string, opts ...eodhd.QueryOption) (eodhd.EODResponse, error) {
	return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, symbol)
}

func (offlineSource) GetOptionChain(ctx context.Context, symbol string, opts ...eodhd.QueryOption) (*eodhd.OptionChainResponse, error) {
	return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, symbol)
}

func (offlineSource) GetEarningsCalendar(ctx context.Context, symbols []string, from, to time.Time) (*eodhd.EarningsCalendarResponse, error) {
	return nil, fmt.Errorf("%w: %v", models.ErrTickerNotFound, symbols)
}

func (offlineSource) GetRealTimeQuote(ctx context.Context, symbol string) (*eodhd.RealTimeQuote, error) {
	return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, symbol)
}

// missingModel reports that the configured model is not installed.
type missingModel struct{}

func (missingModel) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	return nil, llm.ErrModelNotFound
}

func (missingModel) ValidateModel(ctx context.Context) (bool, error) { return false, nil }
func (missingModel) Model() string                                    { return "llama3.1:8b" }
func (missingModel) Provider() string                                 { return "ollama" }

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = ""

	a, err := New(cfg, arbor.NewLogger(), WithLLMClient(missingModel{}), WithMarketSource(offlineSource{}))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_WiresServices(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.ScanService)
	assert.NotNil(t, a.AnalysisService)
	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.HealthChecker)
	assert.NotNil(t, a.WatchlistHandler)
	assert.Equal(t, "ollama", a.LLMProvider())
	assert.Equal(t, "llama3.1:8b", a.LLMModel())
	assert.Equal(t, "closed", a.BreakerState())
	assert.NoError(t, a.StartScheduler())
	assert.False(t, a.SchedulerService.IsRunning())
}

func TestDebate_FallsBackAndRecordsMetrics(t *testing.T) {
	a := newTestApp(t)
	score := 72.0

	result, err := a.AnalysisService.Debate(context.Background(), analysis.DebateRequest{Ticker: "AAPL", Score: &score})
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	// No market context means no signal direction to lean on
	assert.Equal(t, models.DirectionNeutral, result.Thesis.Direction)
	assert.Equal(t, models.FallbackModelName, result.Thesis.ModelUsed)

	// Fallback theses are not persisted
	_, err = a.AnalysisService.LatestThesis(context.Background(), "AAPL")
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	a.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `optionalpha_debates_total{outcome="unreachable"} 1`)
	assert.Contains(t, rec.Body.String(), `optionalpha_debate_state_transitions_total{state="FALLBACK"} 1`)
}

func TestScan_UnknownTickersFail(t *testing.T) {
	a := newTestApp(t)

	_, err := a.ScanService.Run(context.Background(), scan.Request{Tickers: []string{"ZZZZ"}}, nil)
	require.Error(t, err)

	runs, err := a.StorageManager.ScanStorage().ListScanRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.ScanStatusFailed, runs[0].Status)

	rec := httptest.NewRecorder()
	a.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `optionalpha_scans_total{status="failed"} 1`)
}

func TestScan_UsesPersistedDefaultWatchlist(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.StorageManager.WatchlistStorage().CreateWatchlist(ctx, models.DefaultWatchlistName, []string{"zzzz"})
	require.NoError(t, err)

	_, err = a.ScanService.Run(ctx, scan.Request{}, nil)
	require.Error(t, err)

	runs, err := a.StorageManager.ScanStorage().ListScanRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "watchlist:default", runs[0].Source)
	assert.Equal(t, models.ScanStatusFailed, runs[0].Status)
}

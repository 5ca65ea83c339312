package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/jobu711/optionalpha/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = ""
	sm, err := storage.NewStorageManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sm.Close() })
	return sm
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestGetThesis(t *testing.T) {
	sm := newStorage(t)
	handler := handleGetThesis(sm.ThesisStorage(), arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"ticker": "aapl"})
	assert.False(t, isErr)
	assert.Equal(t, "No thesis recorded for AAPL.", text)

	require.NoError(t, sm.ThesisStorage().SaveThesis(context.Background(), "AAPL", models.TradeThesis{
		Direction:         models.DirectionBullish,
		Conviction:        0.7,
		EntryRationale:    "Trend and momentum agree",
		RecommendedAction: "Buy the 45 DTE call",
		ModelUsed:         "llama3.1:8b",
		Disclaimer:        models.Disclaimer,
	}))

	text, isErr = callTool(t, handler, map[string]any{"ticker": "AAPL"})
	assert.False(t, isErr)
	assert.Contains(t, text, "AAPL")
	assert.Contains(t, text, "Trend and momentum agree")

	text, _ = callTool(t, handler, map[string]any{"ticker": "AAPL", "history": 3.0})
	assert.Contains(t, text, "Thesis history for AAPL (1)")

	_, isErr = callTool(t, handler, map[string]any{})
	assert.True(t, isErr)
}

func TestListScores(t *testing.T) {
	sm := newStorage(t)
	scans := sm.ScanStorage()
	handler := handleListScores(scans, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{})
	assert.False(t, isErr)
	assert.Equal(t, "No completed scans yet.", text)

	ctx := context.Background()
	started := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, scans.SaveScanRun(ctx, &models.ScanRun{ID: "scan_a", StartedAt: started, Status: models.ScanStatusCompleted, Source: "watchlist"}))
	require.NoError(t, scans.SaveScores(ctx, "scan_a", []models.ScoreRecord{
		{ID: "scan_a:NVDA", ScanID: "scan_a", Ticker: "NVDA", Score: 88, Rank: 1, Direction: models.DirectionBullish},
		{ID: "scan_a:AMD", ScanID: "scan_a", Ticker: "AMD", Score: 71.5, Rank: 2, Direction: models.DirectionBearish},
	}))
	require.NoError(t, scans.SaveScanRun(ctx, &models.ScanRun{ID: "scan_b", StartedAt: started.Add(time.Hour), Status: models.ScanStatusFailed}))

	text, isErr = callTool(t, handler, map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "Scan scan_a")
	assert.Contains(t, text, "| 1 | NVDA | 88.0 | bullish | - |")

	text, _ = callTool(t, handler, map[string]any{"scan_id": "scan_a", "limit": 1.0})
	assert.NotContains(t, text, "AMD")

	_, isErr = callTool(t, handler, map[string]any{"scan_id": "scan_missing"})
	assert.True(t, isErr)
}

func TestTickerHistory(t *testing.T) {
	sm := newStorage(t)
	scans := sm.ScanStorage()
	handler := handleTickerHistory(scans, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"ticker": "nvda"})
	assert.False(t, isErr)
	assert.Equal(t, "NVDA has not been scored yet.", text)

	ctx := context.Background()
	day := time.Date(2025, 1, 10, 21, 0, 0, 0, time.UTC)
	require.NoError(t, scans.SaveScores(ctx, "scan_a", []models.ScoreRecord{
		{Ticker: "NVDA", Score: 71, Rank: 2, Direction: models.DirectionBullish, CreatedAt: day},
	}))
	require.NoError(t, scans.SaveScores(ctx, "scan_b", []models.ScoreRecord{
		{Ticker: "NVDA", Score: 84.5, Rank: 1, Direction: models.DirectionBullish, CreatedAt: day.AddDate(0, 0, 1)},
	}))

	text, isErr = callTool(t, handler, map[string]any{"ticker": "NVDA"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Score history for NVDA (2 scans)")
	assert.Less(t, strings.Index(text, "scan_b"), strings.Index(text, "scan_a"))
	assert.Contains(t, text, "| scan_b | 1 | 84.5 | bullish |")

	text, _ = callTool(t, handler, map[string]any{"ticker": "NVDA", "limit": 1.0})
	assert.NotContains(t, text, "scan_a")

	_, isErr = callTool(t, handler, map[string]any{})
	assert.True(t, isErr)
}

type fakeRecommender struct {
	req analysis.RecommendRequest
	rec *analysis.Recommendation
	err error
}

func (f *fakeRecommender) Recommend(ctx context.Context, req analysis.RecommendRequest) (*analysis.Recommendation, error) {
	f.req = req
	return f.rec, f.err
}

func TestRecommendContract(t *testing.T) {
	contract := &models.OptionContract{
		Ticker:            "AAPL",
		OptionType:        models.OptionTypeCall,
		Strike:            230,
		Expiration:        time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC),
		Bid:               4.1,
		Ask:               4.3,
		ImpliedVolatility: 0.28,
		Greeks:            &models.Greeks{Delta: 0.4, Gamma: 0.03, Theta: -0.05, Vega: 0.2, Rho: 0.01},
	}
	fake := &fakeRecommender{rec: &analysis.Recommendation{Ticker: "AAPL", Direction: models.DirectionBullish, Contract: contract, ChainSize: 12}}
	handler := handleRecommendContract(fake, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"ticker": "aapl", "direction": "bullish"})
	assert.False(t, isErr)
	assert.Equal(t, "AAPL", fake.req.Ticker)
	assert.Equal(t, "bullish", fake.req.Direction)
	assert.Contains(t, text, "AAPL 2025-02-24 230.00 call")
	assert.Contains(t, text, "Chosen from 12 contracts.")

	fake.rec = &analysis.Recommendation{Ticker: "AAPL", Direction: models.DirectionBearish, ChainSize: 3}
	text, _ = callTool(t, handler, map[string]any{"ticker": "AAPL"})
	assert.Contains(t, text, "No contract in the 3-contract chain")

	fake.err = errors.New("circuit breaker is open")
	text, isErr = callTool(t, handler, map[string]any{"ticker": "AAPL"})
	assert.True(t, isErr)
	assert.Contains(t, text, "circuit breaker is open")
}

func TestFallbackThesis(t *testing.T) {
	handler := handleFallbackThesis(arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"ticker": "MSFT", "score": 82.0, "direction": "bullish", "rsi": 74.0, "adx": 31.0})
	assert.False(t, isErr)
	assert.Contains(t, text, "MSFT")
	assert.Contains(t, text, "RSI overbought at 74")

	tests := []struct {
		name string
		args map[string]any
	}{
		{"score out of range", map[string]any{"ticker": "MSFT", "score": 120.0, "direction": "bullish"}},
		{"missing score", map[string]any{"ticker": "MSFT", "direction": "bullish"}},
		{"bad direction", map[string]any{"ticker": "MSFT", "score": 60.0, "direction": "sideways"}},
		{"bad ticker", map[string]any{"ticker": "!!", "score": 60.0, "direction": "bullish"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isErr := callTool(t, handler, tt.args)
			assert.True(t, isErr)
		})
	}
}

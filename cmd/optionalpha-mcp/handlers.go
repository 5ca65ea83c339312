package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/jobu711/optionalpha/internal/services/debate"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
)

// Recommender picks a contract for a ticker.
type Recommender interface {
	Recommend(ctx context.Context, req analysis.RecommendRequest) (*analysis.Recommendation, error)
}

// requireTicker reads and normalises the ticker argument
func requireTicker(request mcp.CallToolRequest) (string, error) {
	raw, err := request.RequireString("ticker")
	if err != nil || raw == "" {
		return "", fmt.Errorf("ticker parameter is required")
	}
	ticker := common.ParseTicker(raw)
	if err := ticker.Validate(); err != nil {
		return "", err
	}
	return ticker.Code, nil
}

// handleGetThesis implements the get_thesis tool
func handleGetThesis(theses interfaces.ThesisStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := requireTicker(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}

		history := min(request.GetInt("history", 0), 20)
		if history > 0 {
			records, err := theses.ListTheses(ctx, ticker, history+1)
			if err != nil {
				logger.Error().Err(err).Str("ticker", ticker).Msg("ListTheses failed")
				return mcp.NewToolResultError(fmt.Sprintf("Thesis lookup error: %v", err)), nil
			}
			if len(records) == 0 {
				return mcp.NewToolResultText(fmt.Sprintf("No thesis recorded for %s.", ticker)), nil
			}
			return mcp.NewToolResultText(formatThesisHistory(records)), nil
		}

		record, err := theses.GetLatestThesis(ctx, ticker)
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf("No thesis recorded for %s.", ticker)), nil
		}
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("GetLatestThesis failed")
			return mcp.NewToolResultError(fmt.Sprintf("Thesis lookup error: %v", err)), nil
		}

		return mcp.NewToolResultText(formatThesis(*record)), nil
	}
}

// handleTickerHistory implements the ticker_history tool
func handleTickerHistory(scans interfaces.ScanStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := requireTicker(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}
		limit := request.GetInt("limit", 10)
		if limit <= 0 || limit > 100 {
			limit = 100
		}

		history, err := scans.TickerHistory(ctx, ticker, limit)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("TickerHistory failed")
			return mcp.NewToolResultError(fmt.Sprintf("History lookup error: %v", err)), nil
		}
		if len(history) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("%s has not been scored yet.", ticker)), nil
		}
		return mcp.NewToolResultText(formatTickerHistory(ticker, history)), nil
	}
}

// handleListScores implements the list_scores tool
func handleListScores(scans interfaces.ScanStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 10)
		if limit <= 0 || limit > 100 {
			limit = 100
		}

		var run *models.ScanRun
		if scanID := request.GetString("scan_id", ""); scanID != "" {
			found, err := scans.GetScanRun(ctx, scanID)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Scan not found: %v", err)), nil
			}
			run = found
		} else {
			runs, err := scans.ListScanRuns(ctx, 20)
			if err != nil {
				logger.Error().Err(err).Msg("ListScanRuns failed")
				return mcp.NewToolResultError(fmt.Sprintf("Scan lookup error: %v", err)), nil
			}
			for i := range runs {
				if runs[i].Status == models.ScanStatusCompleted {
					run = &runs[i]
					break
				}
			}
			if run == nil {
				return mcp.NewToolResultText("No completed scans yet."), nil
			}
		}

		scores, err := scans.GetScores(ctx, run.ID)
		if err != nil {
			logger.Error().Err(err).Str("scan_id", run.ID).Msg("GetScores failed")
			return mcp.NewToolResultError(fmt.Sprintf("Score lookup error: %v", err)), nil
		}
		if len(scores) > limit {
			scores = scores[:limit]
		}

		return mcp.NewToolResultText(formatScores(*run, scores)), nil
	}
}

// handleRecommendContract implements the recommend_contract tool
func handleRecommendContract(recommender Recommender, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := requireTicker(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}

		rec, err := recommender.Recommend(ctx, analysis.RecommendRequest{
			Ticker:    ticker,
			Direction: request.GetString("direction", ""),
		})
		if err != nil {
			logger.Warn().Err(err).Str("ticker", ticker).Msg("Recommend failed")
			return mcp.NewToolResultError(fmt.Sprintf("Recommendation error: %v", err)), nil
		}

		return mcp.NewToolResultText(formatRecommendation(*rec)), nil
	}
}

// handleFallbackThesis implements the fallback_thesis tool
func handleFallbackThesis(logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := requireTicker(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}

		score, err := request.RequireFloat("score")
		if err != nil || score < 0 || score > 100 {
			return mcp.NewToolResultError("Error: score must be between 0 and 100"), nil
		}
		direction, err := models.ParseSignalDirection(request.GetString("direction", ""))
		if err != nil {
			return mcp.NewToolResultError("Error: direction must be bullish, bearish or neutral"), nil
		}

		var adx *float64
		if _, ok := request.GetArguments()["adx"]; ok {
			v := request.GetFloat("adx", 0)
			adx = &v
		}

		thesis := debate.BuildFallbackThesis(ticker, score, direction,
			request.GetFloat("iv_rank", 50), request.GetFloat("rsi", 50), adx)

		logger.Debug().Str("ticker", ticker).Str("direction", string(thesis.Direction)).Msg("Built fallback thesis")
		return mcp.NewToolResultText(formatFallback(ticker, thesis)), nil
	}
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/jobu711/optionalpha/internal/services/report"
)

// formatThesis renders a stored thesis as the full Markdown report
func formatThesis(record models.ThesisRecord) string {
	return report.Markdown(report.Input{
		Thesis: record.Thesis,
		Context: models.MarketContext{
			Ticker:        record.Ticker,
			DataTimestamp: record.CreatedAt,
		},
	})
}

// formatThesisHistory lists theses newest first, one line each
func formatThesisHistory(records []models.ThesisRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Thesis history for %s (%d)\n\n", records[0].Ticker, len(records)))
	sb.WriteString("| Created | Direction | Conviction | Model |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s | %.0f%% | %s |\n",
			r.CreatedAt.Format(time.RFC3339), r.Thesis.Direction, r.Thesis.Conviction*100, r.Thesis.ModelUsed))
	}
	sb.WriteString("\n### Latest\n\n")
	sb.WriteString(formatThesis(records[0]))
	return sb.String()
}

// formatScores renders ranked scores as a Markdown table
func formatScores(run models.ScanRun, scores []models.ScoreRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Scan %s (%s, %s)\n\n", run.ID, run.Source, run.StartedAt.Format(time.RFC3339)))

	if len(scores) == 0 {
		sb.WriteString("No tickers scored above the threshold.\n")
		return sb.String()
	}

	sb.WriteString("| Rank | Ticker | Score | Direction | Contract |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, s := range scores {
		contract := "-"
		if s.Recommendation != nil {
			contract = s.Recommendation.Symbol()
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %.1f | %s | %s |\n", s.Rank, s.Ticker, s.Score, s.Direction, contract))
	}
	return sb.String()
}

// formatTickerHistory lists one ticker's scores, newest first
func formatTickerHistory(ticker string, history []models.ScoreRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Score history for %s (%d scans)\n\n", ticker, len(history)))
	sb.WriteString("| Scored | Scan | Rank | Score | Direction |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, r := range history {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.1f | %s |\n",
			r.CreatedAt.Format(time.RFC3339), r.ScanID, r.Rank, r.Score, r.Direction))
	}
	return sb.String()
}

// formatRecommendation describes the chosen contract
func formatRecommendation(rec analysis.Recommendation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s %s contract\n\n", rec.Ticker, rec.Direction))

	c := rec.Contract
	if c == nil {
		sb.WriteString(fmt.Sprintf("No contract in the %d-contract chain met the liquidity and delta filters.\n", rec.ChainSize))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("**Contract:** %s\n", c.Symbol()))
	sb.WriteString(fmt.Sprintf("**Bid/Ask:** $%.2f / $%.2f\n", c.Bid, c.Ask))
	sb.WriteString(fmt.Sprintf("**Volume / OI:** %d / %d\n", c.Volume, c.OpenInterest))
	sb.WriteString(fmt.Sprintf("**IV:** %.1f%%\n", c.ImpliedVolatility*100))
	if c.Greeks != nil {
		sb.WriteString("\n| Greek | Value | Meaning |\n|---|---|---|\n")
		for _, row := range report.GreekRows(*c.Greeks, c.GreeksSource) {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", row.Name, row.Value, row.Meaning))
		}
	}
	sb.WriteString(fmt.Sprintf("\nChosen from %d contracts.\n", rec.ChainSize))
	return sb.String()
}

// formatFallback renders a data-driven thesis
func formatFallback(ticker string, thesis models.TradeThesis) string {
	return report.Markdown(report.Input{
		Thesis:  thesis,
		Context: models.MarketContext{Ticker: ticker, DataTimestamp: time.Now().UTC()},
	})
}

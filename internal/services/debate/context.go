package debate

import (
	"fmt"
	"strings"

	"github.com/jobu711/optionalpha/internal/models"
)

// RenderContext converts a market snapshot into flat labelled lines for a prompt.
// Output is deterministic for a given snapshot.
func RenderContext(mc models.MarketContext) string {
	lines := []string{
		"Ticker: " + mc.Ticker,
		fmt.Sprintf("Current Price: $%.2f", mc.CurrentPrice),
		fmt.Sprintf("52-Week Range: $%.2f - $%.2f", mc.Price52wLow, mc.Price52wHigh),
		fmt.Sprintf("IV Rank: %.1f (%s)", mc.IVRank, interpretIVRank(mc.IVRank)),
		fmt.Sprintf("IV Percentile: %.1f%%", mc.IVPercentile),
		fmt.Sprintf("ATM IV (30 DTE): %.1f%%", mc.ATMIV30d*100),
		fmt.Sprintf("RSI(14): %.1f (%s)", mc.RSI14, interpretRSI(mc.RSI14)),
		"MACD Signal: " + mc.MACDSignal,
		fmt.Sprintf("Put/Call Ratio: %.2f", mc.PutCallRatio),
		"Next Earnings: " + formatEarnings(mc),
		fmt.Sprintf("DTE Target: %d", mc.DTETarget),
		fmt.Sprintf("Target Strike: $%.2f", mc.TargetStrike),
		fmt.Sprintf("Target Delta: %.2f", mc.TargetDelta),
		"Sector: " + mc.Sector,
		"Data as of: " + mc.DataTimestamp.UTC().Format("2006-01-02 15:04") + " UTC",
	}
	return strings.Join(lines, "\n")
}

func interpretIVRank(ivRank float64) string {
	switch {
	case ivRank < 25:
		return "low"
	case ivRank < 50:
		return "moderate"
	case ivRank < 75:
		return "high"
	default:
		return "very high"
	}
}

func interpretRSI(rsi float64) string {
	switch {
	case rsi < 30:
		return "oversold"
	case rsi > 70:
		return "overbought"
	default:
		return "neutral"
	}
}

func formatEarnings(mc models.MarketContext) string {
	if mc.NextEarnings == nil {
		return "N/A"
	}
	days := models.DaysBetween(mc.DataTimestamp, *mc.NextEarnings)
	return fmt.Sprintf("%s (%d DTE)", mc.NextEarnings.Format("2006-01-02"), days)
}

package debate

import (
	"fmt"
	"strings"

	"github.com/jobu711/optionalpha/internal/models"
)

// Fallback thresholds
const (
	StrongScoreThreshold   = 70.0
	ModerateScoreThreshold = 50.0

	rsiOverbought     = 70.0
	rsiOverboughtWarn = 65.0
	rsiOversold       = 30.0
	rsiOversoldWarn   = 35.0

	ivRankHigh = 70.0
	ivRankLow  = 20.0

	adxWeakTrend = 20.0
)

// DirectionFromScore is the fallback's directional guess: bullish at or above 50.
func DirectionFromScore(score float64) models.SignalDirection {
	if score >= ModerateScoreThreshold {
		return models.DirectionBullish
	}
	return models.DirectionBearish
}

// BuildFallbackThesis produces a rule-based thesis from the score and raw
// indicators. It makes no external calls and always succeeds.
func BuildFallbackThesis(ticker string, score float64, direction models.SignalDirection, ivRank, rsi float64, adx *float64) models.TradeThesis {
	finalDirection, strength := fallbackDirection(score, direction)

	adxText := "ADX N/A"
	if adx != nil {
		adxText = fmt.Sprintf("ADX %.0f", *adx)
	}
	entryRationale := fmt.Sprintf("%s (%.0f/100 composite, %s trend alignment, RSI %.0f, %s)",
		strings.ToUpper(string(finalDirection)), score, strength, rsi, adxText)

	risks := fallbackRiskFactors(ivRank, rsi, adx, finalDirection)

	topRisks := "none identified"
	if len(risks) > 0 {
		n := min(len(risks), 2)
		topRisks = strings.Join(risks[:n], ", ")
	}
	signal := fmt.Sprintf("composite score %.0f/100, RSI %.0f, IV rank %.0f. %s conviction.",
		score, rsi, ivRank, capitalize(strength))

	var bull, bear, action string
	switch finalDirection {
	case models.DirectionBullish:
		bull = fmt.Sprintf("Data-driven bullish signal for %s: %s", ticker, signal)
		bear = fmt.Sprintf("No AI bear argument generated. Risk factors: %s.", topRisks)
		action = fmt.Sprintf("Consider bullish position on %s with %s conviction based on composite scoring.", ticker, strength)
	case models.DirectionBearish:
		bull = fmt.Sprintf("No AI bull argument generated. Risk factors: %s.", topRisks)
		bear = fmt.Sprintf("Data-driven bearish signal for %s: %s", ticker, signal)
		action = fmt.Sprintf("Consider bearish position on %s with %s conviction based on composite scoring.", ticker, strength)
	default:
		bull = fmt.Sprintf("Insufficient signal strength for %s. Composite score %.0f/100 does not favor bulls.", ticker, score)
		bear = fmt.Sprintf("Insufficient signal strength for %s. Composite score %.0f/100 does not favor bears.", ticker, score)
		action = fmt.Sprintf("Hold/no action on %s. Composite score %.0f/100 is below threshold.", ticker, score)
	}

	return models.TradeThesis{
		Direction:         finalDirection,
		Conviction:        clamp01(score / 100),
		EntryRationale:    entryRationale,
		RiskFactors:       risks,
		RecommendedAction: action,
		BullSummary:       bull,
		BearSummary:       bear,
		ModelUsed:         models.FallbackModelName,
		TotalTokens:       0,
		DurationMs:        0,
		Disclaimer:        models.Disclaimer,
	}
}

func fallbackDirection(score float64, direction models.SignalDirection) (models.SignalDirection, string) {
	if direction != models.DirectionBullish && direction != models.DirectionBearish {
		return models.DirectionNeutral, "weak"
	}
	switch {
	case score >= StrongScoreThreshold:
		return direction, "strong"
	case score >= ModerateScoreThreshold:
		return direction, "moderate"
	default:
		return models.DirectionNeutral, "weak"
	}
}

func fallbackRiskFactors(ivRank, rsi float64, adx *float64, direction models.SignalDirection) []string {
	var factors []string

	switch {
	case rsi >= rsiOverbought:
		factors = append(factors, fmt.Sprintf("RSI overbought at %.0f", rsi))
	case rsi >= rsiOverboughtWarn:
		factors = append(factors, fmt.Sprintf("RSI approaching overbought at %.0f", rsi))
	case rsi <= rsiOversold:
		factors = append(factors, fmt.Sprintf("RSI oversold at %.0f", rsi))
	case rsi <= rsiOversoldWarn:
		factors = append(factors, fmt.Sprintf("RSI approaching oversold at %.0f", rsi))
	}

	switch {
	case ivRank >= ivRankHigh:
		factors = append(factors, fmt.Sprintf("IV rank elevated at %.0f -- potential IV crush risk", ivRank))
	case ivRank <= ivRankLow:
		factors = append(factors, fmt.Sprintf("IV rank low at %.0f -- limited premium selling opportunity", ivRank))
	}

	if adx == nil {
		factors = append(factors, "ADX unavailable -- trend strength unknown")
	} else if *adx < adxWeakTrend {
		factors = append(factors, fmt.Sprintf("ADX at %.0f indicates weak/no trend", *adx))
	}

	switch direction {
	case models.DirectionBullish:
		factors = append(factors, "Bullish thesis carries downside risk if momentum reverses")
	case models.DirectionBearish:
		factors = append(factors, "Bearish thesis risks rally or short squeeze")
	}

	return factors
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

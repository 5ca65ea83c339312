// Package report renders theses as Markdown, HTML and PDF.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/scoring"
)

// contractMultiplier is shares per listed equity option.
const contractMultiplier = 100

// Interpretation thresholds
const (
	rsiOverbought      = 70.0
	rsiOversold        = 30.0
	stochOverbought    = 80.0
	stochOversold      = 20.0
	williamsOverbought = -20.0
	williamsOversold   = -80.0
	adxStrongTrend     = 25.0
	ivElevated         = 50.0
	ivHigh             = 75.0
	bbTight            = 30.0
	bbWide             = 70.0
	putCallBullish     = 0.7
	putCallBearish     = 1.3
	smaAligned         = 0.5
	relVolumeHigh      = 1.5
	relVolumeLow       = 0.5
	rhoMinimal         = 0.05
)

// GreekRow is one line of the Greeks table.
type GreekRow struct {
	Name    string
	Value   string
	Meaning string
}

// GreekRows describes each Greek as per-contract dollar impact.
func GreekRows(g models.Greeks, source *models.GreeksSource) []GreekRow {
	label := ""
	if source != nil {
		label = fmt.Sprintf(" (%s)", *source)
	}

	theta := g.Theta * contractMultiplier
	thetaMeaning := fmt.Sprintf("Gaining $%.0f/day from time decay per contract", theta)
	if g.Theta < 0 {
		thetaMeaning = fmt.Sprintf("Losing $%.0f/day to time decay per contract", math.Abs(theta))
	}

	rhoMeaning := "Minimal interest rate sensitivity"
	if math.Abs(g.Rho) >= rhoMinimal {
		rhoMeaning = fmt.Sprintf("$%.0f P&L per 1%% rate change", math.Abs(g.Rho)*contractMultiplier)
	}

	return []GreekRow{
		{"Delta", fmt.Sprintf("%.3f", g.Delta), fmt.Sprintf("$%.0f P&L per $1 move in underlying%s", math.Abs(g.Delta)*contractMultiplier, label)},
		{"Gamma", fmt.Sprintf("%.3f", g.Gamma), fmt.Sprintf("Delta changes %.3f per $1 move", g.Gamma)},
		{"Theta", fmt.Sprintf("%.3f", g.Theta), thetaMeaning},
		{"Vega", fmt.Sprintf("%.3f", g.Vega), fmt.Sprintf("$%.0f P&L per 1%% change in IV", g.Vega*contractMultiplier)},
		{"Rho", fmt.Sprintf("%.3f", g.Rho), rhoMeaning},
	}
}

// Interpret gives a short reading of one indicator value.
func Interpret(name string, value float64) string {
	switch name {
	case scoring.IndicatorRSI:
		return band(value, rsiOversold, rsiOverbought, "oversold", "neutral", "overbought")
	case scoring.IndicatorStochRSI:
		return band(value, stochOversold, stochOverbought, "oversold", "neutral", "overbought")
	case scoring.IndicatorWilliamsR:
		return band(value, williamsOversold, williamsOverbought, "oversold", "neutral", "overbought")
	case scoring.IndicatorADX:
		if value > adxStrongTrend {
			return "strong trend"
		}
		return "weak trend"
	case scoring.IndicatorIVRank, scoring.IndicatorIVPercentile:
		switch {
		case value > ivHigh:
			return "high"
		case value > ivElevated:
			return "elevated"
		}
		return "low"
	case scoring.IndicatorBBWidth:
		return band(value, bbTight, bbWide, "tight", "normal", "wide")
	case scoring.IndicatorPutCallRatio:
		return band(value, putCallBullish, putCallBearish, "bullish", "neutral", "bearish")
	case scoring.IndicatorOBVTrend, scoring.IndicatorADTrend:
		return band(value, 0, 0, "falling", "flat", "rising")
	case scoring.IndicatorSMAAlignment:
		return band(value, -smaAligned, smaAligned, "bearish alignment", "neutral", "bullish alignment")
	case scoring.IndicatorSupertrend:
		if value > 0 {
			return "bullish"
		}
		return "bearish"
	case scoring.IndicatorRelativeVolume:
		return band(value, relVolumeLow, relVolumeHigh, "low volume", "average volume", "high volume")
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// band labels v as below lo, above hi, or in between.
func band(v, lo, hi float64, below, between, above string) string {
	switch {
	case v > hi:
		return above
	case v < lo:
		return below
	}
	return between
}

// Indicator categories in display order.
const (
	CategoryTrend      = "Trend"
	CategoryMomentum   = "Momentum"
	CategoryVolatility = "Volatility"
	CategoryVolume     = "Volume"
	CategoryOther      = "Other"
)

var categoryOrder = []string{CategoryTrend, CategoryMomentum, CategoryVolatility, CategoryVolume, CategoryOther}

var indicatorCategory = map[string]string{
	scoring.IndicatorADX:            CategoryTrend,
	scoring.IndicatorROC:            CategoryTrend,
	scoring.IndicatorSupertrend:     CategoryTrend,
	scoring.IndicatorSMAAlignment:   CategoryTrend,
	scoring.IndicatorVWAPDeviation:  CategoryTrend,
	scoring.IndicatorRSI:            CategoryMomentum,
	scoring.IndicatorStochRSI:       CategoryMomentum,
	scoring.IndicatorWilliamsR:      CategoryMomentum,
	scoring.IndicatorATRPercent:     CategoryVolatility,
	scoring.IndicatorBBWidth:        CategoryVolatility,
	scoring.IndicatorKeltnerWidth:   CategoryVolatility,
	scoring.IndicatorIVRank:         CategoryVolatility,
	scoring.IndicatorIVPercentile:   CategoryVolatility,
	scoring.IndicatorOBVTrend:       CategoryVolume,
	scoring.IndicatorADTrend:        CategoryVolume,
	scoring.IndicatorRelativeVolume: CategoryVolume,
	scoring.IndicatorPutCallRatio:   CategoryVolume,
	scoring.IndicatorMaxPain:        CategoryVolume,
}

// Reading is one interpreted indicator.
type Reading struct {
	Name    string
	Value   float64
	Meaning string
}

// Category groups readings under a heading.
type Category struct {
	Name     string
	Readings []Reading
}

// GroupIndicators sorts signals into categories. Empty categories are
// omitted and readings within a category are ordered by name.
func GroupIndicators(signals map[string]float64) []Category {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	grouped := make(map[string][]Reading)
	for _, name := range names {
		category, ok := indicatorCategory[name]
		if !ok {
			category = CategoryOther
		}
		value := signals[name]
		grouped[category] = append(grouped[category], Reading{Name: name, Value: value, Meaning: Interpret(name, value)})
	}

	var categories []Category
	for _, name := range categoryOrder {
		if readings := grouped[name]; len(readings) > 0 {
			categories = append(categories, Category{Name: name, Readings: readings})
		}
	}
	return categories
}

// Conflicts lists signal combinations that contradict each other.
func Conflicts(signals map[string]float64) []string {
	get := func(name string) (float64, bool) {
		v, ok := signals[name]
		return v, ok && !math.IsNaN(v)
	}
	rsi, hasRSI := get(scoring.IndicatorRSI)
	adx, hasADX := get(scoring.IndicatorADX)
	sma, hasSMA := get(scoring.IndicatorSMAAlignment)
	stoch, hasStoch := get(scoring.IndicatorStochRSI)
	ivRank, hasIVRank := get(scoring.IndicatorIVRank)
	pcr, hasPCR := get(scoring.IndicatorPutCallRatio)
	obv, hasOBV := get(scoring.IndicatorOBVTrend)

	var conflicts []string
	if hasRSI && hasADX && rsi > rsiOverbought && adx > adxStrongTrend {
		conflicts = append(conflicts, fmt.Sprintf("Momentum near overbought (RSI %.1f) contradicts strong trend (ADX %.1f)", rsi, adx))
	}
	if hasRSI && hasSMA && rsi < rsiOversold && sma < -smaAligned {
		conflicts = append(conflicts, fmt.Sprintf("RSI oversold (%.1f) but bearish SMA alignment (%.2f): potential value trap", rsi, sma))
	}
	if hasRSI && hasStoch {
		switch {
		case rsi > rsiOverbought && stoch < stochOversold:
			conflicts = append(conflicts, fmt.Sprintf("RSI overbought (%.1f) but Stochastic RSI oversold (%.1f): mixed momentum", rsi, stoch))
		case rsi < rsiOversold && stoch > stochOverbought:
			conflicts = append(conflicts, fmt.Sprintf("RSI oversold (%.1f) but Stochastic RSI overbought (%.1f): mixed momentum", rsi, stoch))
		}
	}
	if hasIVRank && hasPCR && ivRank > ivHigh && pcr < putCallBullish {
		conflicts = append(conflicts, fmt.Sprintf("IV Rank elevated (%.1f) but put/call ratio bullish (%.2f): options expensive despite low put demand", ivRank, pcr))
	}
	if hasOBV && hasRSI && obv < 0 && rsi > rsiOverbought {
		conflicts = append(conflicts, fmt.Sprintf("OBV declining while RSI overbought (%.1f): bearish volume divergence", rsi))
	}
	return conflicts
}

// Filename builds TICKER_DATE[_STRIKE{C|P}]_analysis.ext.
func Filename(ticker string, contract *models.OptionContract, date time.Time, ext string) string {
	parts := []string{strings.ToUpper(ticker), date.Format("2006-01-02")}
	if contract != nil {
		side := "C"
		if contract.OptionType == models.OptionTypePut {
			side = "P"
		}
		parts = append(parts, strconv.FormatFloat(contract.Strike, 'f', -1, 64)+side)
	}
	return strings.Join(parts, "_") + "_analysis." + strings.TrimPrefix(ext, ".")
}

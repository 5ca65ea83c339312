// Package scoring ranks a universe of tickers from raw indicator snapshots.
// All functions are stateless and perform no I/O.
package scoring

// Universe maps ticker -> indicator name -> value. Raw universes may carry
// NaN for missing data; normalized universes never do.
type Universe map[string]map[string]float64

// Indicator names known to the composite weight table.
const (
	IndicatorRSI            = "rsi"
	IndicatorStochRSI       = "stoch_rsi"
	IndicatorWilliamsR      = "williams_r"
	IndicatorADX            = "adx"
	IndicatorROC            = "roc"
	IndicatorSupertrend     = "supertrend"
	IndicatorATRPercent     = "atr_percent"
	IndicatorBBWidth        = "bb_width"
	IndicatorKeltnerWidth   = "keltner_width"
	IndicatorOBVTrend       = "obv_trend"
	IndicatorADTrend        = "ad_trend"
	IndicatorRelativeVolume = "relative_volume"
	IndicatorSMAAlignment   = "sma_alignment"
	IndicatorVWAPDeviation  = "vwap_deviation"
	IndicatorIVRank         = "iv_rank"
	IndicatorIVPercentile   = "iv_percentile"
	IndicatorPutCallRatio   = "put_call_ratio"
	IndicatorMaxPain        = "max_pain"
)

// Weight pairs an indicator with its share of the composite score.
type Weight struct {
	Name   string
	Weight float64
}

// Weights is the composite weight table. Order is fixed so that the
// floating point accumulation in CompositeScore is reproducible.
var Weights = []Weight{
	// Oscillators
	{IndicatorRSI, 0.08},
	{IndicatorStochRSI, 0.05},
	{IndicatorWilliamsR, 0.05},
	// Trend
	{IndicatorADX, 0.08},
	{IndicatorROC, 0.05},
	{IndicatorSupertrend, 0.05},
	// Volatility
	{IndicatorATRPercent, 0.05},
	{IndicatorBBWidth, 0.05},
	{IndicatorKeltnerWidth, 0.04},
	// Volume
	{IndicatorOBVTrend, 0.05},
	{IndicatorADTrend, 0.05},
	{IndicatorRelativeVolume, 0.05},
	// Moving averages
	{IndicatorSMAAlignment, 0.08},
	{IndicatorVWAPDeviation, 0.05},
	// Options
	{IndicatorIVRank, 0.06},
	{IndicatorIVPercentile, 0.06},
	{IndicatorPutCallRatio, 0.05},
	{IndicatorMaxPain, 0.05},
}

// InvertedIndicators are indicators where a higher raw value is a worse signal.
var InvertedIndicators = map[string]bool{
	IndicatorBBWidth:        true,
	IndicatorATRPercent:     true,
	IndicatorRelativeVolume: true,
	IndicatorKeltnerWidth:   true,
}

const (
	// MinCompositeScore is the cut-off below which tickers are dropped from a scan.
	MinCompositeScore = 50.0
	// DefaultCatalystWeight is the blend weight of earnings proximity.
	DefaultCatalystWeight = 0.15

	logFloor = 1.0
)

// WeightOf returns the composite weight for name, or zero when unknown.
func WeightOf(name string) float64 {
	for _, w := range Weights {
		if w.Name == name {
			return w.Weight
		}
	}
	return 0
}

package indicators

import (
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/scoring"
)

// Default periods used by Compute
const (
	RSIPeriod        = 14
	StochPeriod      = 14
	WilliamsPeriod   = 14
	ROCPeriod        = 12
	ADXPeriod        = 14
	SupertrendPeriod = 10
	SupertrendMult   = 3.0
	ATRPeriod        = 14
	BBPeriod         = 20
	BBStd            = 2.0
	KeltnerPeriod    = 20
	KeltnerMult      = 2.0
	SlopePeriod      = 20
	RelVolumePeriod  = 20
	SMAShort         = 20
	SMAMedium        = 50
	SMALong          = 200
)

type computation struct {
	name string
	fn   func() ([]float64, error)
}

// Compute returns the latest value of every indicator the bars support.
// Indicators with too little history or no finite value are omitted.
func Compute(bars []models.PriceBar) map[string]float64 {
	closes, highs, lows, volumes := Columns(bars)

	steps := []computation{
		{scoring.IndicatorRSI, func() ([]float64, error) { return RSI(closes, RSIPeriod) }},
		{scoring.IndicatorStochRSI, func() ([]float64, error) { return StochRSI(closes, RSIPeriod, StochPeriod) }},
		{scoring.IndicatorWilliamsR, func() ([]float64, error) { return WilliamsR(highs, lows, closes, WilliamsPeriod) }},
		{scoring.IndicatorADX, func() ([]float64, error) { return ADX(highs, lows, closes, ADXPeriod) }},
		{scoring.IndicatorROC, func() ([]float64, error) { return ROC(closes, ROCPeriod) }},
		{scoring.IndicatorSupertrend, func() ([]float64, error) {
			return Supertrend(highs, lows, closes, SupertrendPeriod, SupertrendMult)
		}},
		{scoring.IndicatorATRPercent, func() ([]float64, error) { return ATRPercent(highs, lows, closes, ATRPeriod) }},
		{scoring.IndicatorBBWidth, func() ([]float64, error) { return BBWidth(closes, BBPeriod, BBStd) }},
		{scoring.IndicatorKeltnerWidth, func() ([]float64, error) {
			return KeltnerWidth(highs, lows, closes, KeltnerPeriod, KeltnerMult)
		}},
		{scoring.IndicatorOBVTrend, func() ([]float64, error) { return OBVTrend(closes, volumes, SlopePeriod) }},
		{scoring.IndicatorADTrend, func() ([]float64, error) { return ADTrend(highs, lows, closes, volumes, SlopePeriod) }},
		{scoring.IndicatorRelativeVolume, func() ([]float64, error) { return RelativeVolume(volumes, RelVolumePeriod) }},
		{scoring.IndicatorSMAAlignment, func() ([]float64, error) {
			return SMAAlignment(closes, SMAShort, SMAMedium, SMALong)
		}},
		{scoring.IndicatorVWAPDeviation, func() ([]float64, error) { return VWAPDeviation(closes, volumes) }},
	}

	out := make(map[string]float64, len(steps))
	for _, step := range steps {
		series, err := step.fn()
		if err != nil {
			continue
		}
		if v, ok := Latest(series); ok {
			out[step.name] = v
		}
	}
	return out
}

package scoring

import "github.com/jobu711/optionalpha/internal/models"

const (
	adxTrendThreshold = 20.0
	rsiOverbought     = 70.0
	rsiOversold       = 30.0
	rsiMidpoint       = 50.0
	smaBullish        = 0.5
	smaBearish        = -0.5
)

// DetermineDirection classifies a ticker from ADX trend strength, RSI and
// SMA alignment. A weak trend (ADX < 20) is always neutral. RSI counts
// against extremes (oversold is bullish) and SMA alignment counts with the
// trend. On an equal non-zero tally the SMA sign decides.
func DetermineDirection(adx, rsi, smaAlignment float64) models.SignalDirection {
	if adx < adxTrendThreshold {
		return models.DirectionNeutral
	}

	var bull, bear float64
	switch {
	case rsi < rsiOversold:
		bull += 1
	case rsi < rsiMidpoint:
		bull += 0.5
	case rsi > rsiOverbought:
		bear += 1
	case rsi > rsiMidpoint:
		bear += 0.5
	}

	switch {
	case smaAlignment > smaBullish:
		bull += 1
	case smaAlignment < smaBearish:
		bear += 1
	}

	switch {
	case bull > bear:
		return models.DirectionBullish
	case bear > bull:
		return models.DirectionBearish
	case bull > 0 && smaAlignment > 0:
		return models.DirectionBullish
	case bull > 0 && smaAlignment < 0:
		return models.DirectionBearish
	default:
		return models.DirectionNeutral
	}
}

package indicators

import "math"

// ROC is the percent change over period bars.
func ROC(closes []float64, period int) ([]float64, error) {
	n := len(closes)
	if n < period+1 {
		return nil, insufficient("ROC", period+1, n)
	}

	out := nanSeries(n)
	for i := period; i < n; i++ {
		out[i] = safeDiv(closes[i]-closes[i-period], closes[i-period]) * 100
	}
	return out, nil
}

// ADX is the Average Directional Index with Wilder smoothing. The first
// 2*period values are warmup.
func ADX(highs, lows, closes []float64, period int) ([]float64, error) {
	n := len(closes)
	if n < 2*period+1 {
		return nil, insufficient("ADX", 2*period+1, n)
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	tr := wilder(trueRange(highs, lows, closes), period)
	sPlus := wilder(plusDM, period)
	sMinus := wilder(minusDM, period)

	dx := nanSeries(n)
	for i := range dx {
		var plusDI, minusDI float64
		if tr[i] != 0 {
			plusDI = sPlus[i] / tr[i] * 100
			minusDI = sMinus[i] / tr[i] * 100
		}
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = math.Abs(plusDI-minusDI) / sum * 100
	}

	return maskWarmup(wilder(dx, period), 2*period), nil
}

// Supertrend returns +1 in an uptrend and -1 in a downtrend. Bands are ATR
// based and only tighten until price crosses them.
func Supertrend(highs, lows, closes []float64, period int, multiplier float64) ([]float64, error) {
	n := len(closes)
	if n < period+1 {
		return nil, insufficient("Supertrend", period+1, n)
	}

	atr := wilder(trueRange(highs, lows, closes), period)
	basicUpper := make([]float64, n)
	basicLower := make([]float64, n)
	for i := range closes {
		hl2 := (highs[i] + lows[i]) / 2
		basicUpper[i] = hl2 + multiplier*atr[i]
		basicLower[i] = hl2 - multiplier*atr[i]
	}

	upper := make([]float64, n)
	lower := make([]float64, n)
	trend := make([]float64, n)
	upper[0], lower[0], trend[0] = basicUpper[0], basicLower[0], 1

	for i := 1; i < n; i++ {
		if basicUpper[i] < upper[i-1] || closes[i-1] > upper[i-1] {
			upper[i] = basicUpper[i]
		} else {
			upper[i] = upper[i-1]
		}
		if basicLower[i] > lower[i-1] || closes[i-1] < lower[i-1] {
			lower[i] = basicLower[i]
		} else {
			lower[i] = lower[i-1]
		}

		switch {
		case trend[i-1] == 1 && closes[i] < lower[i]:
			trend[i] = -1
		case trend[i-1] == -1 && closes[i] > upper[i]:
			trend[i] = 1
		default:
			trend[i] = trend[i-1]
		}
	}

	return maskWarmup(trend, period), nil
}

const macdEpsilon = 1e-9

// MACD labels the MACD(12,26,9) line against its signal line as bullish,
// bearish or neutral. Short histories are neutral.
func MACD(closes []float64) string {
	const fast, slow, signal = 12, 26, 9
	if len(closes) < slow+signal {
		return "neutral"
	}

	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := ema(line, signal)

	last := len(closes) - 1
	diff := line[last] - sig[last]
	switch {
	case diff > macdEpsilon:
		return "bullish"
	case diff < -macdEpsilon:
		return "bearish"
	default:
		return "neutral"
	}
}

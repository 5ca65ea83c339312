package indicators

// OBVTrend is the rolling regression slope of On-Balance Volume.
func OBVTrend(closes, volumes []float64, slopePeriod int) ([]float64, error) {
	n := len(closes)
	if n < slopePeriod+1 {
		return nil, insufficient("OBV trend", slopePeriod+1, n)
	}

	obv := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		switch {
		case d > 0:
			obv[i] = obv[i-1] + volumes[i]
		case d < 0:
			obv[i] = obv[i-1] - volumes[i]
		default:
			obv[i] = obv[i-1]
		}
	}
	return rolling(obv, slopePeriod, slope), nil
}

// RelativeVolume is volume over its rolling average.
func RelativeVolume(volumes []float64, period int) ([]float64, error) {
	n := len(volumes)
	if n < period {
		return nil, insufficient("Relative volume", period, n)
	}

	avg := rolling(volumes, period, mean)
	out := nanSeries(n)
	for i := range volumes {
		if isFinite(avg[i]) {
			out[i] = safeDiv(volumes[i], avg[i])
		}
	}
	return out, nil
}

// ADTrend is the rolling regression slope of the Accumulation/Distribution
// line. Bars with high == low contribute nothing.
func ADTrend(highs, lows, closes, volumes []float64, slopePeriod int) ([]float64, error) {
	n := len(closes)
	if n < slopePeriod {
		return nil, insufficient("A/D trend", slopePeriod, n)
	}

	ad := make([]float64, n)
	running := 0.0
	for i := range closes {
		rng := highs[i] - lows[i]
		if rng != 0 {
			clv := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rng
			running += clv * volumes[i]
		}
		ad[i] = running
	}
	return rolling(ad, slopePeriod, slope), nil
}

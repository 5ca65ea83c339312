package indicators

// BBWidth is the Bollinger Band width (upper-lower)/middle using the
// population standard deviation.
func BBWidth(closes []float64, period int, numStd float64) ([]float64, error) {
	n := len(closes)
	if n < period {
		return nil, insufficient("Bollinger Band width", period, n)
	}

	middle := rolling(closes, period, mean)
	std := rolling(closes, period, populationStddev)

	out := nanSeries(n)
	for i := range closes {
		if !isFinite(middle[i]) {
			continue
		}
		out[i] = safeDiv(2*numStd*std[i], middle[i])
	}
	return out, nil
}

// ATRPercent is Wilder ATR as a percentage of close.
func ATRPercent(highs, lows, closes []float64, period int) ([]float64, error) {
	n := len(closes)
	if n < period+1 {
		return nil, insufficient("ATR%", period+1, n)
	}

	atr := wilder(trueRange(highs, lows, closes), period)
	out := nanSeries(n)
	for i := period; i < n; i++ {
		out[i] = safeDiv(atr[i], closes[i]) * 100
	}
	return out, nil
}

// KeltnerWidth is the Keltner Channel width (upper-lower)/middle. The middle
// line is an EMA seeded with the SMA of the first period closes.
func KeltnerWidth(highs, lows, closes []float64, period int, atrMult float64) ([]float64, error) {
	n := len(closes)
	if n < period+1 {
		return nil, insufficient("Keltner width", period+1, n)
	}

	seeded := nanSeries(n)
	seeded[period-1] = mean(closes[:period])
	copy(seeded[period:], closes[period:])
	middle := ema(seeded, period)

	atr := wilder(trueRange(highs, lows, closes), period)

	out := nanSeries(n)
	for i := period; i < n; i++ {
		out[i] = safeDiv(2*atrMult*atr[i], middle[i])
	}
	return out, nil
}

package indicators

// SMAAlignment averages the percent distances of the short and medium SMAs
// from the long SMA. Positive values mean bullish stacking.
func SMAAlignment(closes []float64, short, medium, long int) ([]float64, error) {
	n := len(closes)
	if n < long {
		return nil, insufficient("SMA alignment", long, n)
	}

	s := rolling(closes, short, mean)
	m := rolling(closes, medium, mean)
	l := rolling(closes, long, mean)

	out := nanSeries(n)
	for i := long - 1; i < n; i++ {
		shortDist := safeDiv(s[i]-l[i], l[i]) * 100
		mediumDist := safeDiv(m[i]-l[i], l[i]) * 100
		out[i] = (shortDist + mediumDist) / 2
	}
	return out, nil
}

// VWAPDeviation is the percent distance of close from the cumulative VWAP.
func VWAPDeviation(closes, volumes []float64) ([]float64, error) {
	n := len(closes)
	if n < 1 {
		return nil, insufficient("VWAP deviation", 1, n)
	}

	out := nanSeries(n)
	var cumPV, cumVol float64
	for i := range closes {
		cumPV += closes[i] * volumes[i]
		cumVol += volumes[i]
		vwap := safeDiv(cumPV, cumVol)
		if isFinite(vwap) {
			out[i] = safeDiv(closes[i]-vwap, vwap) * 100
		}
	}
	return out, nil
}

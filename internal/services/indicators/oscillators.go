package indicators

// RSI is the Relative Strength Index with Wilder smoothing. An average loss
// of zero yields 100. The first period values are warmup.
func RSI(closes []float64, period int) ([]float64, error) {
	n := len(closes)
	if n < period+1 {
		return nil, insufficient("RSI", period+1, n)
	}

	gains := nanSeries(n)
	losses := nanSeries(n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		gains[i] = max(d, 0)
		losses[i] = max(-d, 0)
	}
	avgGain := wilder(gains, period)
	avgLoss := wilder(losses, period)

	out := nanSeries(n)
	for i := period; i < n; i++ {
		if !isFinite(avgGain[i]) || !isFinite(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgGain[i]/avgLoss[i])
	}
	return out, nil
}

// StochRSI places RSI within its own rolling range, 0 to 100. A flat RSI
// range yields 50.
func StochRSI(closes []float64, rsiPeriod, stochPeriod int) ([]float64, error) {
	n := len(closes)
	if n < rsiPeriod+stochPeriod {
		return nil, insufficient("Stochastic RSI", rsiPeriod+stochPeriod, n)
	}

	r, err := RSI(closes, rsiPeriod)
	if err != nil {
		return nil, err
	}
	lo := rolling(r, stochPeriod, minOf)
	hi := rolling(r, stochPeriod, maxOf)

	out := nanSeries(n)
	for i := range r {
		if !isFinite(hi[i]) || !isFinite(lo[i]) {
			continue
		}
		rng := hi[i] - lo[i]
		if rng == 0 {
			out[i] = 50
			continue
		}
		out[i] = (r[i] - lo[i]) / rng * 100
	}
	return maskWarmup(out, rsiPeriod+stochPeriod-1), nil
}

// WilliamsR ranges from -100 to 0. A flat high/low range yields -50.
func WilliamsR(highs, lows, closes []float64, period int) ([]float64, error) {
	n := len(closes)
	if n < period {
		return nil, insufficient("Williams %R", period, n)
	}

	hh := rolling(highs, period, maxOf)
	ll := rolling(lows, period, minOf)

	out := nanSeries(n)
	for i := range closes {
		if !isFinite(hh[i]) || !isFinite(ll[i]) {
			continue
		}
		rng := hh[i] - ll[i]
		if rng == 0 {
			out[i] = -50
			continue
		}
		out[i] = (hh[i] - closes[i]) / rng * -100
	}
	return out, nil
}

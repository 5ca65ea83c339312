// Package indicators computes technical indicators from daily bars. Every
// series function returns a slice aligned with its input where warmup
// positions hold NaN. No I/O.
package indicators

import (
	"fmt"
	"math"

	"github.com/jobu711/optionalpha/internal/models"
)

func insufficient(name string, need, got int) error {
	return fmt.Errorf("%w: %s requires at least %d data points, got %d", models.ErrInsufficientData, name, need, got)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// maskWarmup sets the first n values to NaN.
func maskWarmup(values []float64, n int) []float64 {
	for i := 0; i < n && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}

// ewm is an exponentially weighted mean without bias adjustment, seeded with
// the first finite value. NaN inputs after the seed carry the previous mean.
func ewm(values []float64, alpha float64) []float64 {
	out := nanSeries(len(values))
	seeded := false
	prev := 0.0
	for i, v := range values {
		if !isFinite(v) {
			if seeded {
				out[i] = prev
			}
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// wilder applies Wilder's smoothing, an ewm with alpha 1/period.
func wilder(values []float64, period int) []float64 {
	return ewm(values, 1/float64(period))
}

// ema applies span-based smoothing, alpha 2/(span+1).
func ema(values []float64, span int) []float64 {
	return ewm(values, 2/(float64(span)+1))
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// bar has no previous close and uses high-low.
func trueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = max(tr, math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1]))
		}
		out[i] = tr
	}
	return out
}

// rolling applies fn to every full window. Windows containing a non-finite
// value yield NaN.
func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		valid := true
		for _, v := range w {
			if !isFinite(v) {
				valid = false
				break
			}
		}
		if valid {
			out[i] = fn(w)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStddev divides by n, not n-1.
func populationStddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = min(m, v)
	}
	return m
}

// slope is the least squares slope of values against x = 0..n-1.
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	xSum := n * (n - 1) / 2
	x2Sum := n * (n - 1) * (2*n - 1) / 6
	var ySum, xySum float64
	for i, v := range values {
		ySum += v
		xySum += float64(i) * v
	}
	return (n*xySum - xSum*ySum) / (n*x2Sum - xSum*xSum)
}

// safeDiv returns NaN when the denominator is zero.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Latest returns the last finite value of a series.
func Latest(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if isFinite(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

// Columns splits bars into close, high, low and volume series.
func Columns(bars []models.PriceBar) (closes, highs, lows, volumes []float64) {
	closes = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = float64(b.Volume)
	}
	return closes, highs, lows, volumes
}

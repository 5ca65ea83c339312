package scoring

import (
	"math"
	"sort"
)

type tickerValue struct {
	ticker string
	value  float64
}

// PercentileRankNormalize converts raw indicator values into cross-sectional
// percentile ranks in (0, 100].
//
// Each indicator is ranked independently over the tickers holding a finite
// value for it. Ranks are 1-based and exact ties share the average rank of
// their run. Percentile = rank / count * 100, where count is the number of
// valid values for that indicator. Missing values stay missing, and an
// indicator with no valid values anywhere is dropped entirely.
func PercentileRankNormalize(universe Universe) Universe {
	result := make(Universe)
	if len(universe) == 0 {
		return result
	}

	names := make(map[string]struct{})
	for _, indicators := range universe {
		for name := range indicators {
			names[name] = struct{}{}
		}
	}

	for name := range names {
		values := make([]tickerValue, 0, len(universe))
		for ticker, indicators := range universe {
			v, ok := indicators[name]
			if !ok || !isFinite(v) {
				continue
			}
			values = append(values, tickerValue{ticker: ticker, value: v})
		}
		count := len(values)
		if count == 0 {
			continue
		}

		sort.Slice(values, func(i, j int) bool {
			return values[i].value < values[j].value
		})

		for i := 0; i < count; {
			start := i
			for i < count && values[i].value == values[start].value {
				i++
			}
			// Positions start+1..i share their average rank.
			avgRank := float64(start+1+i) / 2.0
			percentile := avgRank / float64(count) * 100.0
			for j := start; j < i; j++ {
				row, ok := result[values[j].ticker]
				if !ok {
					row = make(map[string]float64)
					result[values[j].ticker] = row
				}
				row[name] = percentile
			}
		}
	}

	return result
}

// InvertIndicators flips InvertedIndicators to 100 - p so that a higher
// percentile is always the better signal. The input is not modified.
func InvertIndicators(normalized Universe) Universe {
	result := make(Universe, len(normalized))
	for ticker, indicators := range normalized {
		adjusted := make(map[string]float64, len(indicators))
		for name, v := range indicators {
			if InvertedIndicators[name] {
				adjusted[name] = 100.0 - v
			} else {
				adjusted[name] = v
			}
		}
		result[ticker] = adjusted
	}
	return result
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

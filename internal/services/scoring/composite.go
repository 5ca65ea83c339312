package scoring

import (
	"math"
	"sort"

	"github.com/jobu711/optionalpha/internal/models"
)

// CompositeScore combines percentile-ranked indicators into one score using a
// weighted geometric mean over the known weight table.
//
// Unknown indicator names and non-finite values are ignored. Values at or
// below zero are floored to 1.0 before taking the logarithm. Returns 0 when no
// known indicator is present; otherwise the result is clamped to [0, 100].
func CompositeScore(indicators map[string]float64) float64 {
	var weightedLogSum, weightSum float64
	for _, w := range Weights {
		v, ok := indicators[w.Name]
		if !ok || !isFinite(v) {
			continue
		}
		if v <= 0 {
			v = logFloor
		}
		weightedLogSum += w.Weight * math.Log(v)
		weightSum += w.Weight
	}

	if weightSum == 0 {
		return 0
	}
	return clamp(math.Exp(weightedLogSum/weightSum), 0, 100)
}

// ScoreUniverse runs normalize -> invert -> composite over a raw universe,
// drops tickers below MinCompositeScore and returns the rest ranked by
// descending score. Equal scores are ordered by ticker symbol.
func ScoreUniverse(raw Universe) []models.TickerScore {
	inverted := InvertIndicators(PercentileRankNormalize(raw))

	scores := make([]models.TickerScore, 0, len(inverted))
	for ticker, signals := range inverted {
		score := CompositeScore(signals)
		if score < MinCompositeScore {
			continue
		}
		scores = append(scores, models.TickerScore{
			Ticker:  ticker,
			Score:   score,
			Signals: signals,
		})
	}

	Rerank(scores)
	return scores
}

// Rerank sorts scores descending (ticker ascending on ties) and assigns
// sequential 1-based ranks in place.
func Rerank(scores []models.TickerScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Ticker < scores[j].Ticker
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package contracts narrows an option chain down to a single recommended
// contract: liquidity filter, expiration by target DTE, then strike by delta.
// The stage functions are pure; Recommender adds a clock and logging.
package contracts

import (
	"math"
	"sort"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
)

const (
	MinOpenInterest = 100
	MinVolume       = 1
	MaxSpreadPct    = 0.30

	MinDTE    = 30
	MaxDTE    = 60
	TargetDTE = 45

	DeltaTarget     = 0.35
	DeltaTargetLow  = 0.30
	DeltaTargetHigh = 0.40
)

// FilterContracts keeps the contracts that match direction (calls for
// bullish, puts for bearish) and pass the liquidity gates, most open
// interest first. A neutral direction yields nothing.
func FilterContracts(chain []models.OptionContract, direction models.SignalDirection) []models.OptionContract {
	var want models.OptionType
	switch direction {
	case models.DirectionBullish:
		want = models.OptionTypeCall
	case models.DirectionBearish:
		want = models.OptionTypePut
	default:
		return []models.OptionContract{}
	}

	filtered := make([]models.OptionContract, 0, len(chain))
	for _, c := range chain {
		if c.OptionType != want {
			continue
		}
		if c.OpenInterest < MinOpenInterest || c.Volume < MinVolume {
			continue
		}
		mid := c.Mid()
		if mid == 0 {
			continue
		}
		if c.Spread()/mid > MaxSpreadPct {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].OpenInterest > filtered[j].OpenInterest
	})
	return filtered
}

// SelectExpiration returns every contract at the expiration whose DTE is
// closest to targetDTE within [MinDTE, MaxDTE]. When two expirations are
// equally close the earlier one wins. Returns an empty slice when no
// expiration is in range.
func SelectExpiration(chain []models.OptionContract, targetDTE int, today time.Time) []models.OptionContract {
	var (
		best     time.Time
		bestKey  string
		bestDist = -1
	)
	seen := make(map[string]bool)
	for _, c := range chain {
		key := expirationKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		exp := c.Expiration.UTC()

		dte := c.DTE(today)
		if dte < MinDTE || dte > MaxDTE {
			continue
		}
		dist := absInt(dte - targetDTE)
		if bestDist < 0 || dist < bestDist || (dist == bestDist && exp.Before(best)) {
			best = exp
			bestKey = key
			bestDist = dist
		}
	}

	result := []models.OptionContract{}
	if bestDist < 0 {
		return result
	}
	for _, c := range chain {
		if expirationKey(c) == bestKey {
			result = append(result, c)
		}
	}
	return result
}

// SelectByDelta picks the contract whose delta (absolute for puts) lies in
// [DeltaTargetLow, DeltaTargetHigh] and is closest to DeltaTarget.
// Contracts without Greeks are skipped. Ties go to the higher open
// interest, then the lower strike. Returns nil when nothing qualifies.
func SelectByDelta(chain []models.OptionContract) *models.OptionContract {
	var (
		best     *models.OptionContract
		bestDist float64
	)
	for i := range chain {
		c := &chain[i]
		if c.Greeks == nil {
			continue
		}
		delta := c.Greeks.Delta
		if c.OptionType == models.OptionTypePut {
			delta = math.Abs(delta)
		}
		if delta < DeltaTargetLow || delta > DeltaTargetHigh {
			continue
		}
		dist := math.Abs(delta - DeltaTarget)
		if best == nil || dist < bestDist || (dist == bestDist && preferOnTie(c, best)) {
			best = c
			bestDist = dist
		}
	}

	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}

func preferOnTie(candidate, current *models.OptionContract) bool {
	if candidate.OpenInterest != current.OpenInterest {
		return candidate.OpenInterest > current.OpenInterest
	}
	return candidate.Strike < current.Strike
}

// RecommendContract chains FilterContracts, SelectExpiration and
// SelectByDelta, stopping at the first empty stage.
func RecommendContract(chain []models.OptionContract, direction models.SignalDirection, targetDTE int, today time.Time) *models.OptionContract {
	filtered := FilterContracts(chain, direction)
	if len(filtered) == 0 {
		return nil
	}
	atExpiration := SelectExpiration(filtered, targetDTE, today)
	if len(atExpiration) == 0 {
		return nil
	}
	return SelectByDelta(atExpiration)
}

func expirationKey(c models.OptionContract) string {
	return c.Expiration.UTC().Format("2006-01-02")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package indicators

import (
	"math"
	"sort"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
)

// IVRank places current IV within its high/low range, 0 to 100. A flat range yields 50.
func IVRank(current, high, low float64) float64 {
	if high == low {
		return 50
	}
	return (current - low) / (high - low) * 100
}

// IVPercentile is the percentage of history strictly below current.
func IVPercentile(history []float64, current float64) (float64, error) {
	if len(history) == 0 {
		return 0, insufficient("IV percentile", 1, 0)
	}
	lower := 0
	for _, v := range history {
		if v < current {
			lower++
		}
	}
	return float64(lower) / float64(len(history)) * 100, nil
}

// PutCallRatio is puts over calls, zero when there are no calls.
func PutCallRatio(puts, calls int64) float64 {
	if calls == 0 {
		return 0
	}
	return float64(puts) / float64(calls)
}

// MaxPain returns the strike at which the total intrinsic value owed to
// option holders is smallest. Open interest is summed per strike.
func MaxPain(chain []models.OptionContract) (float64, error) {
	callOI := make(map[float64]float64)
	putOI := make(map[float64]float64)
	for _, c := range chain {
		switch c.OptionType {
		case models.OptionTypeCall:
			callOI[c.Strike] += float64(c.OpenInterest)
		case models.OptionTypePut:
			putOI[c.Strike] += float64(c.OpenInterest)
		}
	}

	strikes := make([]float64, 0, len(callOI)+len(putOI))
	seen := make(map[float64]bool)
	for _, c := range chain {
		if !seen[c.Strike] {
			seen[c.Strike] = true
			strikes = append(strikes, c.Strike)
		}
	}
	if len(strikes) == 0 {
		return 0, insufficient("Max pain", 1, 0)
	}
	sort.Float64s(strikes)

	best := strikes[0]
	minPain := math.Inf(1)
	for _, candidate := range strikes {
		pain := 0.0
		for _, k := range strikes {
			if k < candidate {
				pain += (candidate - k) * callOI[k]
			}
			if k > candidate {
				pain += (k - candidate) * putOI[k]
			}
		}
		if pain < minPain {
			minPain = pain
			best = candidate
		}
	}
	return best, nil
}

// ChainIV summarises implied volatility across an option chain.
type ChainIV struct {
	ATM        float64
	Rank       float64
	Percentile float64
}

// ChainIVStats takes the at-the-money IV from the expiration closest to 30
// days and ranks it against every quoted IV in the chain. Contracts without
// IV are ignored.
func ChainIVStats(chain []models.OptionContract, spot float64, today time.Time) (ChainIV, error) {
	var quoted []models.OptionContract
	for _, c := range chain {
		if c.ImpliedVolatility > 0 {
			quoted = append(quoted, c)
		}
	}
	if len(quoted) == 0 {
		return ChainIV{}, insufficient("Chain IV", 1, 0)
	}

	bestDTE := -1
	for _, c := range quoted {
		d := c.DTE(today)
		if bestDTE < 0 || absInt(d-30) < absInt(bestDTE-30) {
			bestDTE = d
		}
	}

	atmDistance := math.Inf(1)
	var atmIVs []float64
	for _, c := range quoted {
		if c.DTE(today) != bestDTE {
			continue
		}
		dist := math.Abs(c.Strike - spot)
		switch {
		case dist < atmDistance:
			atmDistance = dist
			atmIVs = []float64{c.ImpliedVolatility}
		case dist == atmDistance:
			atmIVs = append(atmIVs, c.ImpliedVolatility)
		}
	}
	atm := mean(atmIVs)

	ivs := make([]float64, len(quoted))
	for i, c := range quoted {
		ivs[i] = c.ImpliedVolatility
	}
	pct, err := IVPercentile(ivs, atm)
	if err != nil {
		return ChainIV{}, err
	}

	return ChainIV{
		ATM:        atm,
		Rank:       IVRank(atm, maxOf(ivs), minOf(ivs)),
		Percentile: pct,
	}, nil
}

// PutCallVolumeRatio is the chain's put volume over call volume.
func PutCallVolumeRatio(chain []models.OptionContract) float64 {
	var puts, calls int64
	for _, c := range chain {
		switch c.OptionType {
		case models.OptionTypeCall:
			calls += c.Volume
		case models.OptionTypePut:
			puts += c.Volume
		}
	}
	return PutCallRatio(puts, calls)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

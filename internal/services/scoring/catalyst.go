package scoring

import (
	"time"

	"github.com/jobu711/optionalpha/internal/models"
)

// Earnings proximity buckets, upper bound inclusive.
const (
	earningsImminentDays = 7
	earningsUpcomingDays = 14
	earningsModerateDays = 30
	earningsDistantDays  = 60
)

// CatalystProximityScore scores how close the next earnings date is to the
// reference date on calendar days: no date 50, past or same day 30, 1-7 days
// 90, 8-14 days 75, 15-30 days 60, 31-60 days 45, beyond 60 days 35.
func CatalystProximityScore(nextEarnings *time.Time, reference time.Time) float64 {
	if nextEarnings == nil {
		return 50
	}

	days := models.DaysBetween(reference, *nextEarnings)
	switch {
	case days <= 0:
		return 30
	case days <= earningsImminentDays:
		return 90
	case days <= earningsUpcomingDays:
		return 75
	case days <= earningsModerateDays:
		return 60
	case days <= earningsDistantDays:
		return 45
	default:
		return 35
	}
}

// ApplyCatalystAdjustment blends a catalyst score into a base score:
// base*(1-weight) + catalyst*weight, clamped to [0, 100].
func ApplyCatalystAdjustment(base, catalyst, weight float64) float64 {
	return clamp(base*(1-weight)+catalyst*weight, 0, 100)
}

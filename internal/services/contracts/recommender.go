package contracts

import (
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/ternarybob/arbor"
)

// Recommender runs RecommendContract against an injected clock so DTE is
// stable under test.
type Recommender struct {
	targetDTE int
	now       func() time.Time
	logger    arbor.ILogger
}

// NewRecommender creates a Recommender. A non-positive targetDTE uses
// TargetDTE; a nil clock uses time.Now.
func NewRecommender(targetDTE int, now func() time.Time, logger arbor.ILogger) *Recommender {
	if targetDTE <= 0 {
		targetDTE = TargetDTE
	}
	if now == nil {
		now = time.Now
	}
	return &Recommender{targetDTE: targetDTE, now: now, logger: logger}
}

// TargetDTE returns the DTE the recommender aims for.
func (r *Recommender) TargetDTE() int {
	return r.targetDTE
}

// Recommend returns the single best contract for direction, or nil.
func (r *Recommender) Recommend(ticker string, chain []models.OptionContract, direction models.SignalDirection) *models.OptionContract {
	today := models.TradingDate(r.now())

	filtered := FilterContracts(chain, direction)
	if len(filtered) == 0 {
		r.logger.Debug().
			Str("ticker", ticker).
			Str("direction", string(direction)).
			Int("chain_size", len(chain)).
			Msg("No contracts passed liquidity filter")
		return nil
	}

	atExpiration := SelectExpiration(filtered, r.targetDTE, today)
	if len(atExpiration) == 0 {
		r.logger.Debug().
			Str("ticker", ticker).
			Int("filtered", len(filtered)).
			Msg("No expiration within DTE window")
		return nil
	}

	best := SelectByDelta(atExpiration)
	if best == nil {
		r.logger.Debug().
			Str("ticker", ticker).
			Int("candidates", len(atExpiration)).
			Msg("No contract matched delta target")
		return nil
	}

	r.logger.Info().
		Str("ticker", ticker).
		Str("contract", best.Symbol()).
		Float64("delta", best.Greeks.Delta).
		Int("dte", best.DTE(today)).
		Msg("Contract recommended")
	return best
}

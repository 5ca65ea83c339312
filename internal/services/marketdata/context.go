package marketdata

import (
	"context"
	"errors"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/indicators"
	"github.com/jobu711/optionalpha/internal/services/scoring"
)

const tradingDaysPerYear = 252

// Snapshot is the assembled market view of one ticker.
type Snapshot struct {
	Context    models.MarketContext
	Indicators map[string]float64
	Direction  models.SignalDirection
	Contract   *models.OptionContract
	ChainSize  int
}

// ADX returns the computed ADX, or nil when history was too short.
func (s *Snapshot) ADX() *float64 {
	v, ok := s.Indicators[scoring.IndicatorADX]
	if !ok {
		return nil
	}
	return &v
}

// BuildMarketContext assembles the flat debate context for ticker. Price
// history is required. The option chain and earnings date are optional and
// their failures only leave the related fields empty. When contract is nil
// one is recommended from the chain for the ticker's direction.
func (s *Service) BuildMarketContext(ctx context.Context, ticker string, contract *models.OptionContract) (*Snapshot, error) {
	bars, err := s.PriceHistory(ctx, ticker, s.lookbackDays)
	if err != nil {
		return nil, err
	}

	closes, highs, lows, _ := indicators.Columns(bars)
	inds := indicators.Compute(bars)
	price := closes[len(closes)-1]
	now := s.now().UTC()
	today := models.TradingDate(now)

	window := max(len(bars)-tradingDaysPerYear, 0)
	mc := models.MarketContext{
		Ticker:        ticker,
		CurrentPrice:  price,
		Price52wHigh:  maxFloat(highs[window:]),
		Price52wLow:   minFloat(lows[window:]),
		RSI14:         inds[scoring.IndicatorRSI],
		MACDSignal:    indicators.MACD(closes),
		DTETarget:     s.recommender.TargetDTE(),
		DataTimestamp: now,
	}

	rsi, ok := inds[scoring.IndicatorRSI]
	if !ok {
		rsi = 50
	}
	direction := scoring.DetermineDirection(inds[scoring.IndicatorADX], rsi, inds[scoring.IndicatorSMAAlignment])

	snap := &Snapshot{Indicators: inds, Direction: direction, Contract: contract}

	chain, err := s.OptionChain(ctx, ticker)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Option chain unavailable, continuing without IV data")
	default:
		snap.ChainSize = len(chain)
		if stats, err := indicators.ChainIVStats(chain, price, today); err == nil {
			mc.IVRank = stats.Rank
			mc.IVPercentile = stats.Percentile
			mc.ATMIV30d = stats.ATM
		}
		mc.PutCallRatio = indicators.PutCallVolumeRatio(chain)
		if snap.Contract == nil && direction != models.DirectionNeutral {
			snap.Contract = s.recommender.Recommend(ticker, chain, direction)
		}
	}

	next, err := s.NextEarnings(ctx, ticker, today)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Earnings calendar unavailable")
	default:
		mc.NextEarnings = next
	}

	if c := snap.Contract; c != nil {
		mc.TargetStrike = c.Strike
		if c.Greeks != nil {
			mc.TargetDelta = c.Greeks.Delta
		}
		mc.DTETarget = c.DTE(today)
	}

	snap.Context = mc

	s.logger.Info().
		Str("ticker", ticker).
		Float64("price", price).
		Float64("iv_rank", mc.IVRank).
		Str("direction", string(direction)).
		Bool("has_contract", snap.Contract != nil).
		Msg("Built market context")

	return snap, nil
}

func maxFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		m = max(m, v)
	}
	return m
}

func minFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		m = min(m, v)
	}
	return m
}

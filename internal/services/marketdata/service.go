// -----------------------------------------------------------------------
// Market data - EODHD fetches behind the shared limiter and a circuit breaker
// -----------------------------------------------------------------------

package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/eodhd"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/contracts"
	"github.com/jobu711/optionalpha/internal/services/ratelimit"
	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
)

// SourceName labels EODHD in errors, logs and metrics.
const SourceName = "eodhd"

const (
	// DefaultLookbackDays covers the 200-day SMA plus warmup and the 52-week range.
	DefaultLookbackDays = 400
	chainWindowDays     = 120
	earningsWindowDays  = 120
	breakerFailures     = 5
	breakerOpenTimeout  = 60 * time.Second
)

// Source is the subset of the EODHD client the service uses.
type Source interface {
	GetEOD(ctx context.Context, symbol string, opts ...eodhd.QueryOption) (eodhd.EODResponse, error)
	GetOptionChain(ctx context.Context, symbol string, opts ...eodhd.QueryOption) (*eodhd.OptionChainResponse, error)
	GetEarningsCalendar(ctx context.Context, symbols []string, from, to time.Time) (*eodhd.EarningsCalendarResponse, error)
	GetRealTimeQuote(ctx context.Context, symbol string) (*eodhd.RealTimeQuote, error)
}

// BreakerObserver is told about circuit breaker state changes.
type BreakerObserver func(name string, from, to gobreaker.State)

// Service fetches market data with retries, rate limiting and a circuit breaker.
type Service struct {
	source       Source
	limiter      *ratelimit.Limiter
	breaker      *gobreaker.CircuitBreaker
	recommender  *contracts.Recommender
	lookbackDays int
	now          func() time.Time
	logger       arbor.ILogger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	now             func() time.Time
	breakerFailures uint32
	breakerTimeout  time.Duration
	onBreaker       BreakerObserver
	recommender     *contracts.Recommender
	lookbackDays    int
}

// WithClock injects the clock used for date windows.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithRecommender sets the contract recommender used by BuildMarketContext.
func WithRecommender(r *contracts.Recommender) Option {
	return func(o *serviceOptions) { o.recommender = r }
}

// WithLookbackDays sets the price history window used by BuildMarketContext.
func WithLookbackDays(days int) Option {
	return func(o *serviceOptions) {
		if days > 0 {
			o.lookbackDays = days
		}
	}
}

// WithBreaker sets the consecutive failures that open the breaker and how
// long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(o *serviceOptions) {
		if failures > 0 {
			o.breakerFailures = failures
		}
		if openFor > 0 {
			o.breakerTimeout = openFor
		}
	}
}

// WithBreakerObserver reports breaker state changes.
func WithBreakerObserver(fn BreakerObserver) Option {
	return func(o *serviceOptions) { o.onBreaker = fn }
}

// NewService creates a market data service.
func NewService(source Source, limiter *ratelimit.Limiter, logger arbor.ILogger, opts ...Option) *Service {
	o := serviceOptions{
		now:             time.Now,
		breakerFailures: breakerFailures,
		breakerTimeout:  breakerOpenTimeout,
		lookbackDays:    DefaultLookbackDays,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.recommender == nil {
		o.recommender = contracts.NewRecommender(0, o.now, logger)
	}

	settings := gobreaker.Settings{
		Name:    SourceName,
		Timeout: o.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, models.ErrTickerNotFound) ||
				errors.Is(err, models.ErrInsufficientData) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			if o.onBreaker != nil {
				o.onBreaker(name, from, to)
			}
		},
	}

	return &Service{
		source:       source,
		limiter:      limiter,
		breaker:      gobreaker.NewCircuitBreaker(settings),
		recommender:  o.recommender,
		lookbackDays: o.lookbackDays,
		now:          o.now,
		logger:       logger,
	}
}

// BreakerState reports the breaker state for health checks.
func (s *Service) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// guarded runs fn through the circuit breaker and converts EODHD errors into
// *models.DataFetchError.
func guarded[T any](s *Service, ticker string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := s.breaker.Execute(func() (interface{}, error) {
		v, err := fn()
		if err != nil {
			return nil, fetchError(ticker, err)
		}
		return v, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &models.DataFetchError{
				Ticker: ticker,
				Source: SourceName,
				Err:    fmt.Errorf("%w: %v", models.ErrDataSourceUnavailable, err),
			}
		}
		return zero, err
	}
	return result.(T), nil
}

// fetchError attaches ticker, source and HTTP details to an EODHD error.
func fetchError(ticker string, err error) error {
	var dfe *models.DataFetchError
	if errors.As(err, &dfe) {
		return err
	}
	out := &models.DataFetchError{Ticker: ticker, Source: SourceName, Err: err}
	var rle *eodhd.RateLimitError
	var apiErr *eodhd.APIError
	switch {
	case errors.As(err, &rle):
		out.HTTPStatus = 429
		out.RetryAfter = rle.RetryAfter
	case errors.As(err, &apiErr):
		out.HTTPStatus = apiErr.StatusCode
	}
	return out
}

func (s *Service) breakerOpen(ticker string) error {
	if s.breaker.State() != gobreaker.StateOpen {
		return nil
	}
	return &models.DataFetchError{
		Ticker: ticker,
		Source: SourceName,
		Err:    fmt.Errorf("%w: circuit open", models.ErrDataSourceUnavailable),
	}
}

// PriceHistory returns ascending daily bars covering the last days calendar days.
func (s *Service) PriceHistory(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	if err := s.breakerOpen(ticker); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultLookbackDays
	}
	symbol := common.ParseTicker(ticker).EODHDSymbol()
	from := s.now().AddDate(0, 0, -days)

	bars, err := ratelimit.FetchWithRetry(ctx, s.limiter, ticker, SourceName, "price history", func(ctx context.Context) ([]models.PriceBar, error) {
		return guarded(s, ticker, func() ([]models.PriceBar, error) {
			resp, err := s.source.GetEOD(ctx, symbol, eodhd.WithDateRange(from, time.Time{}))
			if err != nil {
				return nil, err
			}
			return resp.PriceBars(), nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &models.DataFetchError{Ticker: ticker, Source: SourceName, Err: fmt.Errorf("%w: no price bars", models.ErrInsufficientData)}
	}

	s.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Fetched price history")
	return bars, nil
}

// OptionChain returns the contracts expiring within the chain window. Contracts
// that fail validation, including out-of-range Greeks, are dropped.
func (s *Service) OptionChain(ctx context.Context, ticker string) ([]models.OptionContract, error) {
	if err := s.breakerOpen(ticker); err != nil {
		return nil, err
	}
	symbol := common.ParseTicker(ticker).EODHDSymbol()
	today := models.TradingDate(s.now())

	chain, err := ratelimit.FetchWithRetry(ctx, s.limiter, ticker, SourceName, "option chain", func(ctx context.Context) ([]models.OptionContract, error) {
		return guarded(s, ticker, func() ([]models.OptionContract, error) {
			resp, err := s.source.GetOptionChain(ctx, symbol, eodhd.WithDateRange(today, today.AddDate(0, 0, chainWindowDays)))
			if err != nil {
				return nil, err
			}
			return resp.Contracts(common.ParseTicker(ticker).Code), nil
		})
	})
	if err != nil {
		return nil, err
	}

	valid := make([]models.OptionContract, 0, len(chain))
	for _, c := range chain {
		if err := c.Validate(); err != nil {
			s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Dropping invalid contract")
			continue
		}
		valid = append(valid, c)
	}
	if dropped := len(chain) - len(valid); dropped > 0 {
		s.logger.Info().Str("ticker", ticker).Int("dropped", dropped).Int("kept", len(valid)).Msg("Dropped invalid contracts")
	}
	return valid, nil
}

// NextEarnings returns the next scheduled report on or after from, or nil.
// Only rate limiting is retried.
func (s *Service) NextEarnings(ctx context.Context, ticker string, from time.Time) (*time.Time, error) {
	if err := s.breakerOpen(ticker); err != nil {
		return nil, err
	}
	symbol := common.ParseTicker(ticker).EODHDSymbol()

	return ratelimit.Execute(ctx, s.limiter, ticker, SourceName, func(ctx context.Context) (*time.Time, error) {
		return guarded(s, ticker, func() (*time.Time, error) {
			resp, err := s.source.GetEarningsCalendar(ctx, []string{symbol}, from, from.AddDate(0, 0, earningsWindowDays))
			if err != nil {
				return nil, err
			}
			return resp.NextReportDate(symbol, from), nil
		})
	})
}

// Quote returns the latest delayed quote. Only rate limiting is retried.
func (s *Service) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	if err := s.breakerOpen(ticker); err != nil {
		return models.Quote{}, err
	}
	parsed := common.ParseTicker(ticker)

	return ratelimit.Execute(ctx, s.limiter, ticker, SourceName, func(ctx context.Context) (models.Quote, error) {
		return guarded(s, ticker, func() (models.Quote, error) {
			resp, err := s.source.GetRealTimeQuote(ctx, parsed.EODHDSymbol())
			if err != nil {
				return models.Quote{}, err
			}
			return resp.Quote(parsed.Code), nil
		})
	})
}

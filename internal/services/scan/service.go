// -----------------------------------------------------------------------
// Scan - five phase universe scan: fetch, score, catalysts, contracts, persist
// -----------------------------------------------------------------------

package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/indicators"
	"github.com/jobu711/optionalpha/internal/services/scoring"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// Phases of a scan, in order.
const (
	PhaseLoad       = 1
	PhaseScore      = 2
	PhaseCatalysts  = 3
	PhaseContracts  = 4
	PhasePersist    = 5
	TotalPhases     = 5
	progressEvery   = 50
	defaultTopN     = 10
	defaultFanOut   = 5
	universeSource  = "universe"
	watchlistSource = "watchlist"
	tickersSource   = "tickers"
)

var phaseNames = map[int]string{
	PhaseLoad:      "Loading universe",
	PhaseScore:     "Computing indicators",
	PhaseCatalysts: "Evaluating catalysts",
	PhaseContracts: "Fetching options",
	PhasePersist:   "Persisting results",
}

// PhaseName returns the display name of a phase.
func PhaseName(phase int) string {
	return phaseNames[phase]
}

var (
	// ErrEmptyUniverse means there was nothing to scan.
	ErrEmptyUniverse = errors.New("scan universe is empty")
	// ErrNoMarketData means every price history fetch failed.
	ErrNoMarketData = errors.New("no market data retrieved")
)

// Progress is one pipeline event.
type Progress struct {
	ScanID    string `json:"scan_id"`
	Phase     int    `json:"phase"`
	PhaseName string `json:"phase_name"`
	Message   string `json:"message"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
}

// ProgressSink receives pipeline events. It is called from the scan goroutine
// and must not block.
type ProgressSink func(Progress)

// FinishObserver is told about every finished scan.
type FinishObserver func(run models.ScanRun, elapsed time.Duration)

// MarketData is the subset of the market data service a scan needs.
type MarketData interface {
	PriceHistory(ctx context.Context, ticker string, days int) ([]models.PriceBar, error)
	OptionChain(ctx context.Context, ticker string) ([]models.OptionContract, error)
	NextEarnings(ctx context.Context, ticker string, from time.Time) (*time.Time, error)
}

// ContractRecommender picks one contract from a chain.
type ContractRecommender interface {
	Recommend(ticker string, chain []models.OptionContract, direction models.SignalDirection) *models.OptionContract
}

// Watchlists resolves persisted watchlists by ID or name.
type Watchlists interface {
	GetWatchlist(ctx context.Context, id string) (*models.Watchlist, error)
	GetWatchlistByName(ctx context.Context, name string) (*models.Watchlist, error)
}

// Request selects what to scan. Universe wins over Tickers, which win over a
// named Watchlist. An empty request scans the persisted default watchlist when
// it has tickers, otherwise the configured one.
type Request struct {
	Tickers   []string
	Universe  scoring.Universe
	Watchlist string
}

func (r Request) empty() bool {
	return len(r.Universe) == 0 && len(r.Tickers) == 0 && r.Watchlist == ""
}

// Result is a finished scan.
type Result struct {
	Run     models.ScanRun       `json:"run"`
	Scores  []models.ScoreRecord `json:"scores"`
	Elapsed time.Duration        `json:"elapsed"`
}

// Config holds scan tuning.
type Config struct {
	Watchlist      []string
	UniverseFile   string
	TopN           int
	MinScore       float64
	CatalystWeight float64
	LookbackDays   int
	FanOut         int
}

// ConfigFromCommon maps application config onto scan tuning.
func ConfigFromCommon(cfg *common.Config) Config {
	return Config{
		Watchlist:      cfg.Scan.Watchlist,
		UniverseFile:   cfg.Scan.UniverseFile,
		TopN:           cfg.Scan.TopN,
		MinScore:       cfg.Scan.MinScore,
		CatalystWeight: cfg.Scan.CatalystWeight,
		LookbackDays:   cfg.Scan.LookbackDays,
		FanOut:         cfg.RateLimit.MaxConcurrent,
	}
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	if c.MinScore < scoring.MinCompositeScore {
		c.MinScore = scoring.MinCompositeScore
	}
	if c.CatalystWeight <= 0 || c.CatalystWeight >= 1 {
		c.CatalystWeight = scoring.DefaultCatalystWeight
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 400
	}
	if c.FanOut <= 0 {
		c.FanOut = defaultFanOut
	}
	return c
}

// Service runs scans. Concurrent scans are allowed; each owns its state.
type Service struct {
	market      MarketData
	recommender ContractRecommender
	storage     interfaces.ScanStorage
	watchlists  Watchlists
	config      Config
	onFinish    FinishObserver
	now         func() time.Time
	logger      arbor.ILogger
}

// Option configures a Service.
type Option func(*Service)

// WithStorage persists scan runs and scores.
func WithStorage(storage interfaces.ScanStorage) Option {
	return func(s *Service) { s.storage = storage }
}

// WithWatchlists lets requests scan persisted watchlists.
func WithWatchlists(lists Watchlists) Option {
	return func(s *Service) { s.watchlists = lists }
}

// WithFinishObserver reports finished scans.
func WithFinishObserver(fn FinishObserver) Option {
	return func(s *Service) { s.onFinish = fn }
}

// WithClock injects the clock used for timestamps and catalyst distances.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scan service.
func NewService(market MarketData, recommender ContractRecommender, config Config, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		market:      market,
		recommender: recommender,
		config:      config.withDefaults(),
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run carries the state of one scan.
type run struct {
	*Service
	id   string
	sink ProgressSink
}

func (r *run) emit(phase int, message string, current, total int) {
	if r.sink == nil {
		return
	}
	r.sink(Progress{
		ScanID:    r.id,
		Phase:     phase,
		PhaseName: PhaseName(phase),
		Message:   message,
		Current:   current,
		Total:     total,
	})
}

// Run executes the pipeline. Per-ticker fetch failures are logged and the
// ticker skipped. A persistence failure is logged and the result returned.
func (s *Service) Run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	r := &run{Service: s, id: common.NewScanID(), sink: sink}
	started := s.now().UTC()

	scanRun := models.ScanRun{
		ID:        r.id,
		StartedAt: started,
		Status:    models.ScanStatusRunning,
		TopN:      s.config.TopN,
	}

	scores, err := r.execute(ctx, req, &scanRun)
	completed := s.now().UTC()
	scanRun.CompletedAt = &completed
	elapsed := completed.Sub(started)

	if err != nil {
		scanRun.Status = models.ScanStatusFailed
		s.logger.Warn().Str("scan_id", r.id).Err(err).Msg("Scan failed")
		r.persist(ctx, scanRun, nil)
		s.finish(scanRun, elapsed)
		return nil, fmt.Errorf("scan %s: %w", r.id, err)
	}

	scanRun.Status = models.ScanStatusCompleted
	scanRun.TickerCount = len(scores)

	r.emit(PhasePersist, "Persisting results", 0, 1)
	r.persist(ctx, scanRun, scores)
	r.emit(PhasePersist, fmt.Sprintf("Scan complete: %d tickers scored", len(scores)), TotalPhases, TotalPhases)

	s.logger.Info().
		Str("scan_id", r.id).
		Str("source", scanRun.Source).
		Int("scored", len(scores)).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Msg("Scan complete")

	s.finish(scanRun, elapsed)
	return &Result{Run: scanRun, Scores: scores, Elapsed: elapsed}, nil
}

func (s *Service) finish(run models.ScanRun, elapsed time.Duration) {
	if s.onFinish != nil {
		s.onFinish(run, elapsed)
	}
}

func (r *run) execute(ctx context.Context, req Request, scanRun *models.ScanRun) ([]models.ScoreRecord, error) {
	// Phase 1
	raw, source, err := r.loadUniverse(ctx, req)
	scanRun.Source = source
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 2
	scored := scoring.ScoreUniverse(raw)
	kept := scored[:0]
	for _, ts := range scored {
		if ts.Score >= r.config.MinScore {
			kept = append(kept, ts)
		}
	}
	scoring.Rerank(kept)

	directions := make(map[string]models.SignalDirection, len(kept))
	for _, ts := range kept {
		directions[ts.Ticker] = directionFromRaw(raw[ts.Ticker])
	}
	r.emit(PhaseScore, fmt.Sprintf("Scored %d tickers above threshold", len(kept)), PhaseScore, TotalPhases)
	if len(kept) == 0 {
		r.logger.Warn().Float64("min_score", r.config.MinScore).Msg("No tickers scored above threshold")
		return []models.ScoreRecord{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 3
	kept = r.applyCatalysts(ctx, kept)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 4
	recommendations := r.recommendContracts(ctx, kept, directions)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := r.now().UTC()
	records := make([]models.ScoreRecord, 0, len(kept))
	for _, ts := range kept {
		records = append(records, models.ScoreRecord{
			ID:             common.NewScoreID(r.id, ts.Ticker),
			ScanID:         r.id,
			Ticker:         ts.Ticker,
			Score:          ts.Score,
			Rank:           ts.Rank,
			Signals:        ts.Signals,
			Direction:      directions[ts.Ticker],
			Recommendation: recommendations[ts.Ticker],
			CreatedAt:      created,
		})
	}
	return records, nil
}

// watchlistTickers resolves the named watchlist, or the default one when name
// is empty. The default falls back to the configured tickers when it is
// missing or empty.
func (r *run) watchlistTickers(ctx context.Context, name string) (string, []string, error) {
	if name == "" {
		if r.watchlists != nil {
			list, err := r.watchlists.GetWatchlistByName(ctx, models.DefaultWatchlistName)
			switch {
			case err == nil && len(list.Tickers) > 0:
				return watchlistSource + ":" + list.Name, list.Tickers, nil
			case err != nil && !errors.Is(err, interfaces.ErrRecordNotFound):
				r.logger.Warn().Err(err).Msg("Default watchlist unavailable, using configured tickers")
			}
		}
		return watchlistSource, r.config.Watchlist, nil
	}

	if r.watchlists == nil {
		return watchlistSource, nil, fmt.Errorf("watchlist %q: %w", name, interfaces.ErrRecordNotFound)
	}
	list, err := r.watchlists.GetWatchlistByName(ctx, name)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		list, err = r.watchlists.GetWatchlist(ctx, name)
	}
	if err != nil {
		return watchlistSource, nil, err
	}
	return watchlistSource + ":" + list.Name, list.Tickers, nil
}

// loadUniverse returns the raw indicator universe and where it came from.
func (r *run) loadUniverse(ctx context.Context, req Request) (scoring.Universe, string, error) {
	if req.empty() && r.config.UniverseFile != "" {
		file, err := LoadUniverseFile(r.config.UniverseFile)
		if err != nil {
			return nil, watchlistSource, err
		}
		req = file.Request()
	}

	if len(req.Universe) > 0 {
		r.emit(PhaseLoad, fmt.Sprintf("Using provided universe of %d tickers", len(req.Universe)), PhaseLoad, TotalPhases)
		return req.Universe, universeSource, nil
	}

	source := tickersSource
	requested := req.Tickers
	if len(requested) == 0 {
		var err error
		source, requested, err = r.watchlistTickers(ctx, req.Watchlist)
		if err != nil {
			return nil, source, err
		}
	}
	tickers, invalid := common.NormalizeTickers(requested)
	if len(invalid) > 0 {
		r.logger.Warn().Strs("invalid", invalid).Msg("Skipping invalid tickers")
	}
	if len(tickers) == 0 {
		return nil, source, ErrEmptyUniverse
	}

	r.emit(PhaseLoad, fmt.Sprintf("Fetching price history for %d tickers", len(tickers)), 0, len(tickers))

	var (
		mu        sync.Mutex
		raw       = make(scoring.Universe, len(tickers))
		processed int
		failures  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.FanOut)
	for _, ticker := range tickers {
		g.Go(func() error {
			bars, err := r.market.PriceHistory(gctx, ticker, r.config.LookbackDays)
			var values map[string]float64
			if err == nil {
				values = indicators.Compute(bars)
			}

			mu.Lock()
			defer mu.Unlock()
			processed++
			switch {
			case err != nil:
				failures++
				r.logger.Warn().Str("ticker", ticker).Err(err).Msg("Price history fetch failed")
			case len(values) == 0:
				r.logger.Warn().Str("ticker", ticker).Int("bars", len(bars)).Msg("No indicators computed")
			default:
				raw[ticker] = values
			}
			if processed%progressEvery == 0 {
				r.emit(PhaseLoad, fmt.Sprintf("Processed %d/%d tickers", processed, len(tickers)), processed, len(tickers))
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, source, err
	}
	if err := ctx.Err(); err != nil {
		return nil, source, err
	}

	if failures > 0 {
		r.logger.Warn().Int("failed", failures).Int("total", len(tickers)).Msg("Some tickers failed price history fetch")
	}
	if len(raw) == 0 {
		return nil, source, ErrNoMarketData
	}

	r.emit(PhaseLoad, fmt.Sprintf("Fetched data for %d tickers", len(raw)), PhaseLoad, TotalPhases)
	return raw, source, nil
}

// applyCatalysts blends earnings proximity into each score and re-ranks.
// A failed earnings lookup counts as no known date.
func (r *run) applyCatalysts(ctx context.Context, scores []models.TickerScore) []models.TickerScore {
	r.emit(PhaseCatalysts, "Evaluating earnings catalysts", 0, len(scores))
	today := models.TradingDate(r.now())

	earnings := make([]*time.Time, len(scores))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.FanOut)
	for i, ts := range scores {
		g.Go(func() error {
			next, err := r.market.NextEarnings(gctx, ts.Ticker, today)
			if err != nil {
				r.logger.Debug().Str("ticker", ts.Ticker).Err(err).Msg("Earnings lookup failed")
				return nil
			}
			earnings[i] = next
			return nil
		})
	}
	_ = g.Wait()

	for i := range scores {
		catalyst := scoring.CatalystProximityScore(earnings[i], today)
		scores[i].Score = scoring.ApplyCatalystAdjustment(scores[i].Score, catalyst, r.config.CatalystWeight)
	}
	scoring.Rerank(scores)

	r.emit(PhaseCatalysts, fmt.Sprintf("Catalyst adjustment applied to %d tickers", len(scores)), PhaseCatalysts, TotalPhases)
	return scores
}

// recommendContracts fetches chains for the top-N directional tickers.
func (r *run) recommendContracts(ctx context.Context, scores []models.TickerScore, directions map[string]models.SignalDirection) map[string]*models.OptionContract {
	top := scores[:min(r.config.TopN, len(scores))]
	r.emit(PhaseContracts, fmt.Sprintf("Fetching option chains (top %d)", len(top)), 0, len(top))

	var mu sync.Mutex
	recommendations := make(map[string]*models.OptionContract)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.FanOut)
	for _, ts := range top {
		direction := directions[ts.Ticker]
		if direction == models.DirectionNeutral {
			continue
		}
		g.Go(func() error {
			chain, err := r.market.OptionChain(gctx, ts.Ticker)
			if err != nil {
				r.logger.Warn().Str("ticker", ts.Ticker).Err(err).Msg("Option chain fetch failed")
				return nil
			}
			if contract := r.recommender.Recommend(ts.Ticker, chain, direction); contract != nil {
				mu.Lock()
				recommendations[ts.Ticker] = contract
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.emit(PhaseContracts, fmt.Sprintf("Recommended %d contracts", len(recommendations)), PhaseContracts, TotalPhases)
	return recommendations
}

// persist saves the run and its scores. Failures are logged only.
func (r *run) persist(ctx context.Context, scanRun models.ScanRun, records []models.ScoreRecord) {
	if r.storage == nil {
		return
	}
	// Persist even when the scan itself was cancelled
	ctx = context.WithoutCancel(ctx)

	if err := r.storage.SaveScanRun(ctx, &scanRun); err != nil {
		r.logger.Error().Str("scan_id", scanRun.ID).Err(err).Msg("Failed to persist scan run")
		return
	}
	if len(records) == 0 {
		return
	}
	if err := r.storage.SaveScores(ctx, scanRun.ID, records); err != nil {
		r.logger.Error().Str("scan_id", scanRun.ID).Err(err).Msg("Failed to persist ticker scores")
		return
	}
	r.logger.Debug().Str("scan_id", scanRun.ID).Int("count", len(records)).Msg("Scan results persisted")
}

// directionFromRaw classifies a ticker from its raw ADX, RSI and SMA alignment.
func directionFromRaw(values map[string]float64) models.SignalDirection {
	return scoring.DetermineDirection(
		rawOr(values, scoring.IndicatorADX, 0),
		rawOr(values, scoring.IndicatorRSI, 50),
		rawOr(values, scoring.IndicatorSMAAlignment, 0),
	)
}

func rawOr(values map[string]float64, name string, fallback float64) float64 {
	v, ok := values[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

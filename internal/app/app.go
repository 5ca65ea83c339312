package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/eodhd"
	"github.com/jobu711/optionalpha/internal/handlers"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/metrics"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/jobu711/optionalpha/internal/services/contracts"
	"github.com/jobu711/optionalpha/internal/services/debate"
	"github.com/jobu711/optionalpha/internal/services/health"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/jobu711/optionalpha/internal/services/marketdata"
	"github.com/jobu711/optionalpha/internal/services/ratelimit"
	"github.com/jobu711/optionalpha/internal/services/report"
	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/jobu711/optionalpha/internal/services/scheduler"
	"github.com/jobu711/optionalpha/internal/storage"
	"github.com/ternarybob/arbor"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Metrics        *metrics.Recorder

	// Market data
	Limiter     *ratelimit.Limiter
	MarketData  *marketdata.Service
	Recommender *contracts.Recommender

	// Debate
	LLMClient    llm.ChatClient
	Orchestrator *debate.Orchestrator

	// Pipelines
	ScanService      *scan.Service
	AnalysisService  *analysis.Service
	ReportService    *report.Service
	SchedulerService *scheduler.Service
	HealthChecker    *health.Checker

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	WSHandler        *handlers.WebSocketHandler
	ScanHandler      *handlers.ScanHandler
	WatchlistHandler *handlers.WatchlistHandler
	AnalysisHandler  *handlers.AnalysisHandler
	SchedulerHandler *handlers.SchedulerHandler
}

// Option customises App construction.
type Option func(*options)

type options struct {
	model     string
	llmClient llm.ChatClient
	source    marketdata.Source
}

// WithModel overrides the configured debate model, e.g. "claude-sonnet-4-20250514".
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithLLMClient injects a ready chat backend instead of building one from config.
func WithLLMClient(client llm.ChatClient) Option {
	return func(o *options) { o.llmClient = client }
}

// WithMarketSource injects the market data source instead of the EODHD client.
func WithMarketSource(source marketdata.Source) Option {
	return func(o *options) { o.source = source }
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Must exist before the services so their observers can push to clients
	app.WSHandler = handlers.NewWebSocketHandler(app.Logger, &app.Config.WebSocket)

	if err := app.initServices(o); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("llm_provider", app.LLMProvider()).
		Str("llm_model", app.LLMModel()).
		Int("watchlist", len(cfg.Scan.Watchlist)).
		Bool("metrics_enabled", cfg.Metrics.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the services in dependency order:
// limiter -> market data -> LLM backend -> debate -> scan -> analysis
func (a *App) initServices(o *options) error {
	cfg := a.Config

	a.Limiter = ratelimit.NewLimiter(
		cfg.RateLimit.MaxConcurrent,
		cfg.RateLimit.RequestsPerSecond,
		a.Logger,
		ratelimit.WithMaxRetries(cfg.RateLimit.MaxRetries),
		ratelimit.WithRetryObserver(a.Metrics.RecordFetchRetry),
	)

	a.Recommender = contracts.NewRecommender(cfg.Recommend.TargetDTE, time.Now, a.Logger)

	source := o.source
	if source == nil {
		apiKey, err := common.ResolveAPIKey("eodhd_api_key", cfg.EODHD.APIKey)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("EODHD API key not configured, market data requests will fail")
		}
		source = eodhd.NewClient(apiKey,
			eodhd.WithBaseURL(cfg.EODHD.BaseURL),
			eodhd.WithRateLimit(cfg.EODHD.RateLimit),
			eodhd.WithTimeout(common.ParseDurationOr(cfg.EODHD.Timeout, 30*time.Second)),
			eodhd.WithLogger(a.Logger),
		)
	}

	a.MarketData = marketdata.NewService(source, a.Limiter, a.Logger,
		marketdata.WithRecommender(a.Recommender),
		marketdata.WithLookbackDays(cfg.Scan.LookbackDays),
		marketdata.WithBreakerObserver(a.Metrics.RecordBreakerState),
	)

	a.LLMClient = o.llmClient
	if a.LLMClient == nil {
		client, err := llm.NewChatClient(context.Background(), cfg, o.model, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.LLMClient = client
	}

	agents := debate.NewAgents(a.LLMClient, debate.DefaultPrompts(), cfg.LLM.MaxParseRetries, a.Logger)
	a.Orchestrator = debate.NewOrchestrator(a.LLMClient, agents, a.Logger,
		debate.WithRepository(a.StorageManager.ThesisStorage()),
		debate.WithAgentTimeout(common.ParseDurationOr(cfg.LLM.AgentTimeout, debate.DefaultAgentTimeout)),
		debate.WithValidateTimeout(common.ParseDurationOr(cfg.LLM.ValidateTimeout, debate.DefaultValidateTimeout)),
		debate.WithStateObserver(a.onDebateState),
		debate.WithOutcomeObserver(a.onDebateOutcome),
	)

	a.ScanService = scan.NewService(a.MarketData, a.Recommender, scan.ConfigFromCommon(cfg), a.Logger,
		scan.WithStorage(a.StorageManager.ScanStorage()),
		scan.WithWatchlists(a.StorageManager.WatchlistStorage()),
		scan.WithFinishObserver(a.onScanFinished),
	)

	a.ReportService = report.NewService(a.Logger)
	a.AnalysisService = analysis.NewService(
		a.MarketData,
		a.Orchestrator,
		a.Recommender,
		a.StorageManager.ThesisStorage(),
		a.ReportService,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.ScanService, a.WSHandler.BroadcastScanProgress, a.Logger)

	a.HealthChecker = health.NewChecker(a.LLMClient, a.MarketData, a.StorageManager.ScanStorage(), a.Logger,
		health.WithCanary(cfg.Health.Canary),
		health.WithTimeouts(
			common.ParseDurationOr(cfg.Health.LLMTimeout, health.DefaultLLMTimeout),
			common.ParseDurationOr(cfg.Health.MarketTimeout, health.DefaultMarketTimeout),
			common.ParseDurationOr(cfg.Health.StorageTimeout, health.DefaultStorageTimeout),
		),
	)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a, a.HealthChecker, a.Logger)
	a.ScanHandler = handlers.NewScanHandler(a.ScanService, a.StorageManager.ScanStorage(), a.WSHandler, a.Logger)
	a.WatchlistHandler = handlers.NewWatchlistHandler(a.StorageManager.WatchlistStorage(), a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.AnalysisService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService)
}

// StartScheduler starts scheduled scans when scan.schedule is set.
func (a *App) StartScheduler() error {
	if a.Config.Scan.Schedule == "" {
		a.Logger.Debug().Msg("No scan schedule configured")
		return nil
	}
	return a.SchedulerService.Start(a.Config.Scan.Schedule)
}

func (a *App) onDebateState(ticker string, state debate.State) {
	a.Metrics.RecordDebateState(string(state))
	a.WSHandler.BroadcastDebateState(ticker, string(state))
}

func (a *App) onDebateOutcome(ticker string, thesis models.TradeThesis, kind debate.FailureKind) {
	outcome := metrics.OutcomeCompleted
	if kind != debate.FailureUnknown {
		outcome = kind.String()
	}
	a.Metrics.RecordDebate(outcome, thesis.ModelUsed, thesis.TotalTokens, time.Duration(thesis.DurationMs)*time.Millisecond)
	a.WSHandler.BroadcastDebateOutcome(ticker, outcome, thesis)
}

func (a *App) onScanFinished(run models.ScanRun, elapsed time.Duration) {
	a.Metrics.RecordScan(run.Status, elapsed, run.TickerCount)
	a.WSHandler.BroadcastScanFinished(run, elapsed)
}

// LLMProvider returns the debate backend name.
func (a *App) LLMProvider() string {
	return a.LLMClient.Provider()
}

// LLMModel returns the debate model name.
func (a *App) LLMModel() string {
	return a.LLMClient.Model()
}

// BreakerState returns the market data circuit breaker state.
func (a *App) BreakerState() string {
	return a.MarketData.BreakerState().String()
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if closer, ok := a.LLMClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM client")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

// -----------------------------------------------------------------------
// Health - concurrent dependency checks behind /api/health?deep=1
// -----------------------------------------------------------------------

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// Report status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Check names.
const (
	CheckLLM        = "llm"
	CheckMarketData = "market_data"
	CheckStorage    = "storage"
)

// Default per-check timeouts and the market data canary ticker.
const (
	DefaultLLMTimeout     = 5 * time.Second
	DefaultMarketTimeout  = 10 * time.Second
	DefaultStorageTimeout = 5 * time.Second
	DefaultCanaryTicker   = "SPY"
)

// ModelValidator reports whether the configured debate model is usable.
type ModelValidator interface {
	ValidateModel(ctx context.Context) (bool, error)
}

// QuoteSource fetches a delayed quote.
type QuoteSource interface {
	Quote(ctx context.Context, ticker string) (models.Quote, error)
}

// RunLister reads recent scan runs.
type RunLister interface {
	ListScanRuns(ctx context.Context, limit int) ([]models.ScanRun, error)
}

// Check is the outcome of one dependency check.
type Check struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Report is the outcome of all checks. Status is degraded when any check
// failed.
type Report struct {
	Status    string    `json:"status"`
	Checks    []Check   `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs dependency checks. A nil dependency is skipped.
type Checker struct {
	llm            ModelValidator
	market         QuoteSource
	storage        RunLister
	canary         string
	llmTimeout     time.Duration
	marketTimeout  time.Duration
	storageTimeout time.Duration
	now            func() time.Time
	logger         arbor.ILogger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeouts overrides the per-check timeouts. Zero keeps the default.
func WithTimeouts(llm, market, storage time.Duration) Option {
	return func(c *Checker) {
		if llm > 0 {
			c.llmTimeout = llm
		}
		if market > 0 {
			c.marketTimeout = market
		}
		if storage > 0 {
			c.storageTimeout = storage
		}
	}
}

// WithCanary sets the ticker quoted by the market data check.
func WithCanary(ticker string) Option {
	return func(c *Checker) {
		if ticker != "" {
			c.canary = ticker
		}
	}
}

// WithClock injects the clock used for CheckedAt and latencies.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates a Checker.
func NewChecker(llm ModelValidator, market QuoteSource, storage RunLister, logger arbor.ILogger, opts ...Option) *Checker {
	c := &Checker{
		llm:            llm,
		market:         market,
		storage:        storage,
		canary:         DefaultCanaryTicker,
		llmTimeout:     DefaultLLMTimeout,
		marketTimeout:  DefaultMarketTimeout,
		storageTimeout: DefaultStorageTimeout,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every configured check concurrently, each under its own
// timeout. Checks are reported in a fixed order.
func (c *Checker) Run(ctx context.Context) Report {
	type task struct {
		name    string
		timeout time.Duration
		fn      func(context.Context) (string, error)
	}

	var tasks []task
	if c.llm != nil {
		tasks = append(tasks, task{CheckLLM, c.llmTimeout, c.checkLLM})
	}
	if c.market != nil {
		tasks = append(tasks, task{CheckMarketData, c.marketTimeout, c.checkMarket})
	}
	if c.storage != nil {
		tasks = append(tasks, task{CheckStorage, c.storageTimeout, c.checkStorage})
	}

	checks := make([]Check, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			checks[i] = c.run(ctx, t.name, t.timeout, t.fn)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusOK, Checks: checks, CheckedAt: c.now().UTC()}
	for _, check := range checks {
		if !check.Available {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) run(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (string, error)) Check {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := c.now()
	type outcome struct {
		detail string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		detail, err := fn(ctx)
		done <- outcome{detail, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: fmt.Errorf("timed out after %s", timeout)}
	}

	check := Check{
		Name:      name,
		Available: out.err == nil,
		Detail:    out.detail,
		LatencyMs: c.now().Sub(started).Milliseconds(),
	}
	if out.err != nil {
		check.Detail = out.err.Error()
		c.logger.Warn().Str("check", name).Err(out.err).Msg("Health check failed")
	}
	return check
}

func (c *Checker) checkLLM(ctx context.Context) (string, error) {
	ok, err := c.llm.ValidateModel(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("model unavailable")
	}
	return "model available", nil
}

func (c *Checker) checkMarket(ctx context.Context) (string, error) {
	quote, err := c.market.Quote(ctx, c.canary)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s last %.2f", quote.Ticker, quote.Last), nil
}

func (c *Checker) checkStorage(ctx context.Context) (string, error) {
	if _, err := c.storage.ListScanRuns(ctx, 1); err != nil {
		return "", err
	}
	return "readable", nil
}

// Package debate runs the bull, bear and risk agents against a chat backend
// and falls back to a rule-based thesis when the backend cannot deliver.
package debate

import (
	"context"
	"fmt"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/ternarybob/arbor"
)

// State is a step of the debate state machine.
type State string

const (
	StateCheckingAvailability State = "CHECKING_AVAILABILITY"
	StateRunningBull          State = "RUNNING_BULL"
	StateRunningBear          State = "RUNNING_BEAR"
	StateRunningRisk          State = "RUNNING_RISK"
	StatePersisting           State = "PERSISTING"
	StateDone                 State = "DONE"
	StateFallback             State = "FALLBACK"
)

// Default timeouts
const (
	DefaultAgentTimeout    = 180 * time.Second
	DefaultValidateTimeout = 10 * time.Second
)

// StateObserver receives every state transition of a debate.
type StateObserver func(ticker string, state State)

// OutcomeObserver receives the result of every debate. kind is FailureUnknown
// for a completed model debate.
type OutcomeObserver func(ticker string, thesis models.TradeThesis, kind FailureKind)

// ThesisRepository persists completed theses.
type ThesisRepository interface {
	SaveThesis(ctx context.Context, ticker string, thesis models.TradeThesis) error
}

// DebateInput is one debate request. The score fields feed the fallback.
type DebateInput struct {
	Context        models.MarketContext
	CompositeScore float64
	IVRank         float64
	RSI14          float64
	ADX            *float64
}

// NewDebateInput returns an input with neutral score fields taken from the context where present.
func NewDebateInput(mc models.MarketContext) DebateInput {
	in := DebateInput{
		Context:        mc,
		CompositeScore: 50,
		IVRank:         50,
		RSI14:          50,
	}
	if mc.IVRank > 0 {
		in.IVRank = mc.IVRank
	}
	if mc.RSI14 > 0 {
		in.RSI14 = mc.RSI14
	}
	return in
}

// Orchestrator runs debates. It holds no per-debate state and is safe for
// concurrent use when its repository is.
type Orchestrator struct {
	client          llm.ChatClient
	agents          *Agents
	repository      ThesisRepository
	onState         StateObserver
	onOutcome       OutcomeObserver
	agentTimeout    time.Duration
	validateTimeout time.Duration
	logger          arbor.ILogger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithRepository persists completed theses.
func WithRepository(repo ThesisRepository) Option {
	return func(o *Orchestrator) { o.repository = repo }
}

// WithStateObserver reports state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// WithOutcomeObserver reports debate outcomes.
func WithOutcomeObserver(fn OutcomeObserver) Option {
	return func(o *Orchestrator) { o.onOutcome = fn }
}

// WithAgentTimeout sets the per-agent wall clock limit.
func WithAgentTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.agentTimeout = d
		}
	}
}

// WithValidateTimeout sets the availability check limit.
func WithValidateTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.validateTimeout = d
		}
	}
}

// NewOrchestrator creates a debate orchestrator.
func NewOrchestrator(client llm.ChatClient, agents *Agents, logger arbor.ILogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:          client,
		agents:          agents,
		agentTimeout:    DefaultAgentTimeout,
		validateTimeout: DefaultValidateTimeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run debates one ticker. Every recognised failure yields a fallback thesis
// with a nil error; only unrecognised errors are returned.
func (o *Orchestrator) Run(ctx context.Context, in DebateInput) (models.TradeThesis, error) {
	ticker := in.Context.Ticker
	start := time.Now()

	o.logger.Info().Str("ticker", ticker).Msg("Starting debate")

	o.transition(ticker, StateCheckingAvailability)
	available, err := o.checkAvailability(ctx)
	if err != nil {
		kind := Classify(err)
		if !kind.TriggersFallback() {
			return models.TradeThesis{}, fmt.Errorf("availability check for %s: %w", ticker, err)
		}
		o.logger.Warn().Str("ticker", ticker).Str("kind", kind.String()).Err(err).Msg("LLM availability check failed")
		return o.fallback(in, kind), nil
	}
	if !available {
		o.logger.Warn().Str("ticker", ticker).Str("model", o.client.Model()).Msg("LLM unavailable, using fallback")
		return o.fallback(in, FailureUnreachable), nil
	}

	thesis, err := o.runAgents(ctx, in, start)
	if err != nil {
		kind := Classify(err)
		if !kind.TriggersFallback() {
			return models.TradeThesis{}, fmt.Errorf("debate for %s: %w", ticker, err)
		}
		o.logger.Warn().Str("ticker", ticker).Str("kind", kind.String()).Err(err).Msg("Agent failure, using fallback")
		return o.fallback(in, kind), nil
	}

	if o.repository != nil {
		o.transition(ticker, StatePersisting)
		if err := o.repository.SaveThesis(ctx, ticker, thesis); err != nil {
			o.logger.Error().Str("ticker", ticker).Err(err).Msg("Failed to persist thesis")
		} else {
			o.logger.Info().Str("ticker", ticker).Msg("Persisted thesis")
		}
	}

	o.transition(ticker, StateDone)
	o.observeOutcome(ticker, thesis, FailureUnknown)

	o.logger.Info().
		Str("ticker", ticker).
		Str("direction", string(thesis.Direction)).
		Float64("conviction", thesis.Conviction).
		Int("tokens", thesis.TotalTokens).
		Int64("duration_ms", thesis.DurationMs).
		Msg("Debate complete")

	return thesis, nil
}

func (o *Orchestrator) checkAvailability(ctx context.Context) (bool, error) {
	vctx, cancel := context.WithTimeout(ctx, o.validateTimeout)
	defer cancel()
	return o.client.ValidateModel(vctx)
}

// runAgents runs bull, bear and risk strictly in sequence. Any error aborts the
// debate and discards earlier outputs.
func (o *Orchestrator) runAgents(ctx context.Context, in DebateInput, start time.Time) (models.TradeThesis, error) {
	ticker := in.Context.Ticker
	contextText := RenderContext(in.Context)

	o.transition(ticker, StateRunningBull)
	bull, bullUsage, err := withTimeout(ctx, o.agentTimeout, func(ctx context.Context) (*models.AgentResponse, Usage, error) {
		return o.agents.RunBull(ctx, BullDeps{Context: contextText})
	})
	if err != nil {
		return models.TradeThesis{}, err
	}

	o.transition(ticker, StateRunningBear)
	bear, bearUsage, err := withTimeout(ctx, o.agentTimeout, func(ctx context.Context) (*models.AgentResponse, Usage, error) {
		return o.agents.RunBear(ctx, BearDeps{Context: contextText, BullAnalysis: bull.Analysis})
	})
	if err != nil {
		return models.TradeThesis{}, err
	}

	o.transition(ticker, StateRunningRisk)
	risk, riskUsage, err := withTimeout(ctx, o.agentTimeout, func(ctx context.Context) (*ThesisParsed, Usage, error) {
		return o.agents.RunRisk(ctx, RiskDeps{Context: contextText, BullAnalysis: bull.Analysis, BearAnalysis: bear.Analysis})
	})
	if err != nil {
		return models.TradeThesis{}, err
	}

	direction, err := models.ParseSignalDirection(risk.Direction)
	if err != nil {
		return models.TradeThesis{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	modelUsed := riskUsage.Model
	if modelUsed == "" {
		modelUsed = o.client.Model()
	}

	return models.TradeThesis{
		Direction:         direction,
		Conviction:        *risk.Conviction,
		EntryRationale:    risk.EntryRationale,
		RiskFactors:       risk.RiskFactors,
		RecommendedAction: risk.RecommendedAction,
		BullSummary:       risk.BullSummary,
		BearSummary:       risk.BearSummary,
		ModelUsed:         modelUsed,
		TotalTokens:       bullUsage.TotalTokens() + bearUsage.TotalTokens() + riskUsage.TotalTokens(),
		DurationMs:        time.Since(start).Milliseconds(),
		Disclaimer:        models.Disclaimer,
	}, nil
}

// withTimeout bounds one agent call. Expiry surfaces as context.DeadlineExceeded
// even if the backend ignores cancellation.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, Usage, error)) (T, Usage, error) {
	actx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		usage Usage
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, u, err := fn(actx)
		done <- result{v, u, err}
	}()

	select {
	case r := <-done:
		return r.value, r.usage, r.err
	case <-actx.Done():
		var zero T
		return zero, Usage{}, fmt.Errorf("agent call: %w", actx.Err())
	}
}

func (o *Orchestrator) fallback(in DebateInput, kind FailureKind) models.TradeThesis {
	ticker := in.Context.Ticker
	o.transition(ticker, StateFallback)

	direction := DirectionFromScore(in.CompositeScore)
	thesis := BuildFallbackThesis(ticker, in.CompositeScore, direction, in.IVRank, in.RSI14, in.ADX)

	o.logger.Info().
		Str("ticker", ticker).
		Float64("score", in.CompositeScore).
		Str("direction", string(thesis.Direction)).
		Str("reason", kind.String()).
		Msg("Built fallback thesis")

	o.observeOutcome(ticker, thesis, kind)
	return thesis
}

func (o *Orchestrator) transition(ticker string, state State) {
	o.logger.Debug().Str("ticker", ticker).Str("state", string(state)).Msg("Debate state")
	if o.onState != nil {
		o.onState(ticker, state)
	}
}

func (o *Orchestrator) observeOutcome(ticker string, thesis models.TradeThesis, kind FailureKind) {
	if o.onOutcome != nil {
		o.onOutcome(ticker, thesis, kind)
	}
}

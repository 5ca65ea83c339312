package debate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) observe(_ string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func testInput() DebateInput {
	return DebateInput{
		Context: models.MarketContext{
			Ticker:        "AAPL",
			CurrentPrice:  187.5,
			IVRank:        22,
			RSI14:         55,
			DTETarget:     45,
			DataTimestamp: time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC),
		},
		CompositeScore: 72,
		IVRank:         22,
		RSI14:          55,
		ADX:            ptr(28),
	}
}

func newTestOrchestrator(client *mockChatClient, opts ...Option) *Orchestrator {
	agents := NewAgents(client, DefaultPrompts(), MaxParseRetries, createTestLogger())
	return NewOrchestrator(client, agents, createTestLogger(), opts...)
}

func TestOrchestrator_Success(t *testing.T) {
	client := &mockChatClient{}
	client.On("ValidateModel", mock.Anything).Return(true, nil)
	client.reply(bullJSON, 100, 50)
	client.reply(bearJSON, 200, 60)
	client.reply(riskJSON, 300, 70)

	repo := &mockThesisRepository{}
	repo.On("SaveThesis", mock.Anything, "AAPL", mock.AnythingOfType("models.TradeThesis")).Return(nil)

	rec := &stateRecorder{}
	thesis, err := newTestOrchestrator(client, WithRepository(repo), WithStateObserver(rec.observe)).Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, models.DirectionBullish, thesis.Direction)
	assert.Equal(t, 0.65, thesis.Conviction)
	assert.Equal(t, "Buy the AAPL 190 call", thesis.RecommendedAction)
	assert.Equal(t, []string{"IV crush after earnings", "Theta decay of $5/day"}, thesis.RiskFactors)
	assert.Equal(t, "test-model:8b", thesis.ModelUsed)
	assert.Equal(t, 780, thesis.TotalTokens)
	assert.GreaterOrEqual(t, thesis.DurationMs, int64(0))
	assert.Equal(t, models.Disclaimer, thesis.Disclaimer)
	assert.False(t, thesis.IsFallback())

	assert.Equal(t, []State{
		StateCheckingAvailability, StateRunningBull, StateRunningBear, StateRunningRisk, StatePersisting, StateDone,
	}, rec.states)
	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestOrchestrator_PromptsCarryOpponentText(t *testing.T) {
	client := &mockChatClient{}
	client.On("ValidateModel", mock.Anything).Return(true, nil)
	client.reply(bullJSON, 1, 1)
	client.reply(bearJSON, 1, 1)
	client.reply(riskJSON, 1, 1)

	_, err := newTestOrchestrator(client).Run(context.Background(), testInput())
	require.NoError(t, err)

	bearPrompt := client.Calls[2].Arguments.Get(1).([]llm.Message)[1].Content
	assert.Contains(t, bearPrompt, "Calls are cheap with IV rank 22.")

	riskPrompt := client.Calls[3].Arguments.Get(1).([]llm.Message)[1].Content
	assert.Contains(t, riskPrompt, "Calls are cheap with IV rank 22.")
	assert.Contains(t, riskPrompt, "Earnings in 12 days risks IV crush.")
}

func TestOrchestrator_PersistenceFailureIsSwallowed(t *testing.T) {
	client := &mockChatClient{}
	client.On("ValidateModel", mock.Anything).Return(true, nil)
	client.reply(bullJSON, 1, 1)
	client.reply(bearJSON, 1, 1)
	client.reply(riskJSON, 1, 1)

	repo := &mockThesisRepository{}
	repo.On("SaveThesis", mock.Anything, "AAPL", mock.Anything).Return(errors.New("disk full"))

	thesis, err := newTestOrchestrator(client, WithRepository(repo)).Run(context.Background(), testInput())
	require.NoError(t, err)
	assert.False(t, thesis.IsFallback())
	repo.AssertNumberOfCalls(t, "SaveThesis", 1)
}

func TestOrchestrator_ModelUnavailable(t *testing.T) {
	client := &mockChatClient{}
	client.On("ValidateModel", mock.Anything).Return(false, nil)

	repo := &mockThesisRepository{}
	rec := &stateRecorder{}

	thesis, err := newTestOrchestrator(client, WithRepository(repo), WithStateObserver(rec.observe)).Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.True(t, thesis.IsFallback())
	assert.Equal(t, models.DirectionBullish, thesis.Direction)
	assert.Equal(t, 0.72, thesis.Conviction)
	assert.Equal(t, []State{StateCheckingAvailability, StateFallback}, rec.states)
	client.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SaveThesis", mock.Anything, mock.Anything, mock.Anything)
}

// failure injects one fallback-triggering fault into the scripted client.
type failure struct {
	name   string
	inject func(c *mockChatClient)
	kind   FailureKind
}

var agentFailures = []failure{
	{"timeout", func(c *mockChatClient) { c.fail(fmt.Errorf("chat: %w", context.DeadlineExceeded)) }, FailureTimeout},
	{"connection refused", func(c *mockChatClient) { c.fail(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)) }, FailureUnreachable},
	{"unreachable", func(c *mockChatClient) { c.fail(llm.ErrUnreachable) }, FailureUnreachable},
	{"backend error", func(c *mockChatClient) { c.fail(fmt.Errorf("%w: overloaded", llm.ErrBackend)) }, FailureUnreachable},
	{"malformed json", func(c *mockChatClient) {
		for i := 0; i <= MaxParseRetries; i++ {
			c.reply("{not json", 1, 1)
		}
	}, FailureMalformedOutput},
	{"validation", func(c *mockChatClient) {
		for i := 0; i <= MaxParseRetries; i++ {
			c.reply(`{"agent_role":"bull","analysis":"x","key_points":[],"conviction":7,"contracts_referenced":[],`+
				`"direction":"up","entry_rationale":"x","risk_factors":[],"recommended_action":"x","bull_summary":"x","bear_summary":"x"}`, 1, 1)
		}
	}, FailureValidation},
}

func TestOrchestrator_FallbackOnAgentFailure(t *testing.T) {
	valid := []string{bullJSON, bearJSON, riskJSON}

	for step, role := range []Role{RoleBull, RoleBear, RoleRisk} {
		for _, f := range agentFailures {
			t.Run(string(role)+"/"+f.name, func(t *testing.T) {
				client := &mockChatClient{}
				client.On("ValidateModel", mock.Anything).Return(true, nil)
				for i := 0; i < step; i++ {
					client.reply(valid[i], 10, 10)
				}
				f.inject(client)

				repo := &mockThesisRepository{}
				var gotKind FailureKind
				orch := newTestOrchestrator(client,
					WithRepository(repo),
					WithOutcomeObserver(func(_ string, _ models.TradeThesis, kind FailureKind) { gotKind = kind }),
				)

				thesis, err := orch.Run(context.Background(), testInput())
				require.NoError(t, err)
				assert.Equal(t, models.FallbackModelName, thesis.ModelUsed)
				assert.Equal(t, 0, thesis.TotalTokens)
				assert.Equal(t, f.kind, gotKind)
				repo.AssertNotCalled(t, "SaveThesis", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	}
}

func TestOrchestrator_FallbackOnAvailabilityFailure(t *testing.T) {
	errs := map[string]error{
		"timeout":            context.DeadlineExceeded,
		"malformed":          ErrMalformedOutput,
		"validation":         ErrValidation,
		"connection refused": fmt.Errorf("dial: %w", syscall.ECONNREFUSED),
		"backend error":      fmt.Errorf("show: %w", llm.ErrBackend),
	}

	for name, injected := range errs {
		t.Run(name, func(t *testing.T) {
			client := &mockChatClient{}
			client.On("ValidateModel", mock.Anything).Return(false, injected)

			thesis, err := newTestOrchestrator(client).Run(context.Background(), testInput())
			require.NoError(t, err)
			assert.True(t, thesis.IsFallback())
		})
	}
}

func TestOrchestrator_AgentTimeout(t *testing.T) {
	client := &mockChatClient{}
	client.On("ValidateModel", mock.Anything).Return(true, nil)
	client.On("Chat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	var gotKind FailureKind
	orch := newTestOrchestrator(client,
		WithAgentTimeout(20*time.Millisecond),
		WithOutcomeObserver(func(_ string, _ models.TradeThesis, kind FailureKind) { gotKind = kind }),
	)

	thesis, err := orch.Run(context.Background(), testInput())
	require.NoError(t, err)
	assert.True(t, thesis.IsFallback())
	assert.Equal(t, FailureTimeout, gotKind)
}

func TestOrchestrator_UnknownErrorPropagates(t *testing.T) {
	boom := errors.New("nil map write")

	client := &mockChatClient{}
	client.On("ValidateModel", mock.Anything).Return(true, nil)
	client.fail(boom)

	_, err := newTestOrchestrator(client).Run(context.Background(), testInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	client2 := &mockChatClient{}
	client2.On("ValidateModel", mock.Anything).Return(false, boom)
	_, err = newTestOrchestrator(client2).Run(context.Background(), testInput())
	assert.True(t, errors.Is(err, boom))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureUnknown},
		{fmt.Errorf("bull agent: %w", context.DeadlineExceeded), FailureTimeout},
		{fmt.Errorf("x: %w", ErrMalformedOutput), FailureMalformedOutput},
		{fmt.Errorf("x: %w", ErrValidation), FailureValidation},
		{llm.ErrUnreachable, FailureUnreachable},
		{fmt.Errorf("x: %w", llm.ErrModelNotFound), FailureUnreachable},
		{fmt.Errorf("bull agent: %w", llm.ErrBackend), FailureUnreachable},
		{context.Canceled, FailureUnknown},
		{errors.New("other"), FailureUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

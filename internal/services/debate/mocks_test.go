package debate

import (
	"context"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/stretchr/testify/mock"
	"github.com/ternarybob/arbor"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

type mockChatClient struct {
	mock.Mock
}

func (m *mockChatClient) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	args := m.Called(ctx, messages)
	resp, _ := args.Get(0).(*llm.ChatResponse)
	return resp, args.Error(1)
}

func (m *mockChatClient) ValidateModel(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockChatClient) Model() string    { return "test-model:8b" }
func (m *mockChatClient) Provider() string { return "test" }

// reply queues one successful chat reply.
func (m *mockChatClient) reply(content string, in, out int) *mock.Call {
	return m.On("Chat", mock.Anything, mock.Anything).Return(&llm.ChatResponse{
		Content:      content,
		Model:        "test-model:8b",
		InputTokens:  in,
		OutputTokens: out,
	}, nil).Once()
}

// fail queues one failed chat call.
func (m *mockChatClient) fail(err error) *mock.Call {
	return m.On("Chat", mock.Anything, mock.Anything).Return(nil, err).Once()
}

type mockThesisRepository struct {
	mock.Mock
}

func (m *mockThesisRepository) SaveThesis(ctx context.Context, ticker string, thesis models.TradeThesis) error {
	return m.Called(ctx, ticker, thesis).Error(0)
}

const (
	bullJSON = `{"agent_role":"bull","analysis":"Calls are cheap with IV rank 22.","key_points":["IV rank 22","RSI 55","trend up"],` +
		`"conviction":0.7,"contracts_referenced":["AAPL 190 call 2025-02-21"],` +
		`"greeks_cited":{"delta":0.35,"gamma":null,"theta":-0.05,"vega":null,"rho":null}}`
	bearJSON = `{"agent_role":"bear","analysis":"Earnings in 12 days risks IV crush.","key_points":["earnings","theta"],` +
		`"conviction":0.4,"contracts_referenced":[],"greeks_cited":{"delta":null,"gamma":null,"theta":null,"vega":null,"rho":null}}`
	riskJSON = `{"direction":"Bullish","conviction":0.65,"entry_rationale":"Trend and cheap IV outweigh earnings risk.",` +
		`"risk_factors":["IV crush after earnings","Theta decay of $5/day"],"recommended_action":"Buy the AAPL 190 call",` +
		`"bull_summary":"Cheap calls in an uptrend.","bear_summary":"Earnings IV crush."}`
)

package models

import "time"

// Disclaimer is attached to every thesis shown to a user.
const Disclaimer = "For research and educational use only. This output is produced by " +
	"automated scoring and language models and is not investment advice or a " +
	"solicitation to buy or sell any security. Options carry substantial risk, " +
	"including the loss of the entire premium paid. Verify all figures independently " +
	"and consult a licensed professional before trading."

// MarketContext is the flat market snapshot rendered into debate prompts.
type MarketContext struct {
	Ticker        string     `json:"ticker"`
	CurrentPrice  float64    `json:"current_price"`
	Price52wHigh  float64    `json:"price_52w_high"`
	Price52wLow   float64    `json:"price_52w_low"`
	IVRank        float64    `json:"iv_rank"`
	IVPercentile  float64    `json:"iv_percentile"`
	ATMIV30d      float64    `json:"atm_iv_30d"`
	RSI14         float64    `json:"rsi_14"`
	MACDSignal    string     `json:"macd_signal"`
	PutCallRatio  float64    `json:"put_call_ratio"`
	NextEarnings  *time.Time `json:"next_earnings,omitempty"`
	DTETarget     int        `json:"dte_target"`
	TargetStrike  float64    `json:"target_strike"`
	TargetDelta   float64    `json:"target_delta"`
	Sector        string     `json:"sector"`
	DataTimestamp time.Time  `json:"data_timestamp"`
}

// AgentResponse is one bull or bear argument plus its usage metadata.
type AgentResponse struct {
	AgentRole           string             `json:"agent_role"`
	Analysis            string             `json:"analysis"`
	KeyPoints           []string           `json:"key_points"`
	Conviction          float64            `json:"conviction"`
	ContractsReferenced []string           `json:"contracts_referenced"`
	GreeksCited         map[string]float64 `json:"greeks_cited"`
	ModelUsed           string             `json:"model_used"`
	InputTokens         int                `json:"input_tokens"`
	OutputTokens        int                `json:"output_tokens"`
}

// TradeThesis is the final output of a debate, either model-generated or
// produced by the data-driven fallback.
type TradeThesis struct {
	Direction         SignalDirection `json:"direction"`
	Conviction        float64         `json:"conviction" validate:"gte=0,lte=1"`
	EntryRationale    string          `json:"entry_rationale"`
	RiskFactors       []string        `json:"risk_factors"`
	RecommendedAction string          `json:"recommended_action"`
	BullSummary       string          `json:"bull_summary"`
	BearSummary       string          `json:"bear_summary"`
	ModelUsed         string          `json:"model_used"`
	TotalTokens       int             `json:"total_tokens" validate:"gte=0"`
	DurationMs        int64           `json:"duration_ms" validate:"gte=0"`
	Disclaimer        string          `json:"disclaimer"`
}

// IsFallback reports whether the thesis was built without a model.
func (t TradeThesis) IsFallback() bool {
	return t.ModelUsed == FallbackModelName
}

// FallbackModelName is the model_used marker for data-driven theses.
const FallbackModelName = "data-driven-fallback"

// ThesisRecord is the persisted form of a thesis.
type ThesisRecord struct {
	ID        string      `json:"id" badgerhold:"key"`
	Ticker    string      `json:"ticker" badgerhold:"index"`
	Thesis    TradeThesis `json:"thesis"`
	CreatedAt time.Time   `json:"created_at"`
}

package debate

import (
	"strings"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/llm"
)

func TestDefaultPrompts_Versioned(t *testing.T) {
	p := DefaultPrompts()
	for name, prompt := range map[string]string{"bull": p.Bull, "bear": p.Bear, "risk": p.Risk} {
		if !strings.HasPrefix(prompt, "# VERSION: "+PromptVersion) {
			t.Errorf("%s prompt missing version header", name)
		}
		if !strings.Contains(prompt, "Do NOT fabricate data") {
			t.Errorf("%s prompt missing fabrication rule", name)
		}
	}
	if !strings.Contains(p.Bear, "Directly address the bull's specific claims") {
		t.Error("bear prompt must instruct a rebuttal")
	}
	if !strings.Contains(p.Risk, `declare the direction as "neutral"`) {
		t.Error("risk prompt must allow a neutral verdict")
	}
}

func TestPromptMessages(t *testing.T) {
	p := DefaultPrompts()

	bull := p.BullMessages(BullDeps{Context: "Ticker: AAPL"})
	if len(bull) != 2 || bull[0].Role != llm.RoleSystem || bull[1].Role != llm.RoleUser {
		t.Fatalf("BullMessages() roles = %+v", bull)
	}
	if !strings.Contains(bull[1].Content, "<user_input>\nTicker: AAPL\n</user_input>") {
		t.Errorf("bull user content = %q", bull[1].Content)
	}

	bear := p.BearMessages(BearDeps{Context: "Ticker: AAPL", BullAnalysis: "calls are cheap"})
	if !strings.Contains(bear[1].Content, "<opponent_argument>\ncalls are cheap\n</opponent_argument>") {
		t.Errorf("bear user content = %q", bear[1].Content)
	}

	risk := p.RiskMessages(RiskDeps{Context: "Ticker: AAPL", BullAnalysis: "up", BearAnalysis: "down"})
	content := risk[1].Content
	if !strings.Contains(content, "<opponent_argument role=\"bull\">\nup\n</opponent_argument>") ||
		!strings.Contains(content, "<opponent_argument role=\"bear\">\ndown\n</opponent_argument>") {
		t.Errorf("risk user content = %q", content)
	}
}

func TestRenderContext(t *testing.T) {
	earnings := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	mc := models.MarketContext{
		Ticker:        "AAPL",
		CurrentPrice:  187.5,
		Price52wHigh:  199.62,
		Price52wLow:   164.08,
		IVRank:        62.3,
		IVPercentile:  71.0,
		ATMIV30d:      0.284,
		RSI14:         72.4,
		MACDSignal:    "bullish crossover",
		PutCallRatio:  0.85,
		NextEarnings:  &earnings,
		DTETarget:     45,
		TargetStrike:  190,
		TargetDelta:   0.35,
		Sector:        "Technology",
		DataTimestamp: time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC),
	}

	got := RenderContext(mc)
	for _, want := range []string{
		"Ticker: AAPL",
		"Current Price: $187.50",
		"52-Week Range: $164.08 - $199.62",
		"IV Rank: 62.3 (high)",
		"IV Percentile: 71.0%",
		"ATM IV (30 DTE): 28.4%",
		"RSI(14): 72.4 (overbought)",
		"Next Earnings: 2025-01-22 (12 DTE)",
		"Target Delta: 0.35",
		"Data as of: 2025-01-10 15:30 UTC",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderContext() missing %q\n%s", want, got)
		}
	}
	if strings.ContainsAny(got, "{}") {
		t.Error("RenderContext() must be flat text")
	}

	mc.NextEarnings = nil
	if !strings.Contains(RenderContext(mc), "Next Earnings: N/A") {
		t.Error("missing earnings should render as N/A")
	}
}

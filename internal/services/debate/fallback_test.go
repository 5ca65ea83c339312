package debate

import (
	"strings"
	"testing"

	"github.com/jobu711/optionalpha/internal/models"
)

func ptr(v float64) *float64 { return &v }

func TestBuildFallbackThesis_Direction(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		direction     models.SignalDirection
		wantDirection models.SignalDirection
		wantStrength  string
	}{
		{"strong bull", 75, models.DirectionBullish, models.DirectionBullish, "strong"},
		{"moderate bull", 55, models.DirectionBullish, models.DirectionBullish, "moderate"},
		{"strong bear", 70, models.DirectionBearish, models.DirectionBearish, "strong"},
		{"moderate bear", 50, models.DirectionBearish, models.DirectionBearish, "moderate"},
		{"weak bull", 49.9, models.DirectionBullish, models.DirectionNeutral, "weak"},
		{"neutral input", 90, models.DirectionNeutral, models.DirectionNeutral, "weak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thesis := BuildFallbackThesis("AAPL", tt.score, tt.direction, 50, 50, ptr(25))
			if thesis.Direction != tt.wantDirection {
				t.Errorf("Direction = %v, want %v", thesis.Direction, tt.wantDirection)
			}
			if !strings.Contains(thesis.EntryRationale, tt.wantStrength+" trend alignment") {
				t.Errorf("EntryRationale = %q, want strength %q", thesis.EntryRationale, tt.wantStrength)
			}
			if thesis.ModelUsed != models.FallbackModelName {
				t.Errorf("ModelUsed = %q, want %q", thesis.ModelUsed, models.FallbackModelName)
			}
			if thesis.TotalTokens != 0 || thesis.DurationMs != 0 {
				t.Errorf("usage = %d tokens / %d ms, want 0 / 0", thesis.TotalTokens, thesis.DurationMs)
			}
			if thesis.Disclaimer != models.Disclaimer {
				t.Error("Disclaimer not set")
			}
		})
	}
}

func TestBuildFallbackThesis_ConvictionClamp(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{150, 1.0},
		{-10, 0.0},
		{62, 0.62},
	}

	for _, tt := range tests {
		got := BuildFallbackThesis("AAPL", tt.score, models.DirectionBullish, 50, 50, nil).Conviction
		if got != tt.want {
			t.Errorf("Conviction(score=%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestBuildFallbackThesis_RiskFactors(t *testing.T) {
	tests := []struct {
		name      string
		ivRank    float64
		rsi       float64
		adx       *float64
		direction models.SignalDirection
		want      []string
	}{
		{
			name: "overbought elevated weak trend bullish", ivRank: 80, rsi: 72, adx: ptr(15), direction: models.DirectionBullish,
			want: []string{
				"RSI overbought at 72",
				"IV rank elevated at 80 -- potential IV crush risk",
				"ADX at 15 indicates weak/no trend",
				"Bullish thesis carries downside risk if momentum reverses",
			},
		},
		{
			name: "approaching overbought", ivRank: 50, rsi: 66, adx: ptr(30), direction: models.DirectionBullish,
			want: []string{
				"RSI approaching overbought at 66",
				"Bullish thesis carries downside risk if momentum reverses",
			},
		},
		{
			name: "oversold low iv missing adx bearish", ivRank: 10, rsi: 28, adx: nil, direction: models.DirectionBearish,
			want: []string{
				"RSI oversold at 28",
				"IV rank low at 10 -- limited premium selling opportunity",
				"ADX unavailable -- trend strength unknown",
				"Bearish thesis risks rally or short squeeze",
			},
		},
		{
			name: "approaching oversold", ivRank: 40, rsi: 34, adx: ptr(25), direction: models.DirectionBearish,
			want: []string{
				"RSI approaching oversold at 34",
				"Bearish thesis risks rally or short squeeze",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thesis := BuildFallbackThesis("MSFT", 75, tt.direction, tt.ivRank, tt.rsi, tt.adx)
			if len(thesis.RiskFactors) != len(tt.want) {
				t.Fatalf("RiskFactors = %v, want %v", thesis.RiskFactors, tt.want)
			}
			for i := range tt.want {
				if thesis.RiskFactors[i] != tt.want[i] {
					t.Errorf("RiskFactors[%d] = %q, want %q", i, thesis.RiskFactors[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildFallbackThesis_Narrative(t *testing.T) {
	bull := BuildFallbackThesis("NVDA", 72, models.DirectionBullish, 30, 55, ptr(28))
	if bull.EntryRationale != "BULLISH (72/100 composite, strong trend alignment, RSI 55, ADX 28)" {
		t.Errorf("EntryRationale = %q", bull.EntryRationale)
	}
	if !strings.HasPrefix(bull.BullSummary, "Data-driven bullish signal for NVDA") {
		t.Errorf("BullSummary = %q", bull.BullSummary)
	}
	if !strings.HasPrefix(bull.BearSummary, "No AI bear argument generated. Risk factors: ") {
		t.Errorf("BearSummary = %q", bull.BearSummary)
	}

	neutral := BuildFallbackThesis("NVDA", 40, models.DirectionBearish, 30, 55, nil)
	if neutral.RecommendedAction != "Hold/no action on NVDA. Composite score 40/100 is below threshold." {
		t.Errorf("RecommendedAction = %q", neutral.RecommendedAction)
	}
	if !strings.Contains(neutral.EntryRationale, "ADX N/A") {
		t.Errorf("EntryRationale = %q, want ADX N/A", neutral.EntryRationale)
	}
}

func TestDirectionFromScore(t *testing.T) {
	if got := DirectionFromScore(50); got != models.DirectionBullish {
		t.Errorf("DirectionFromScore(50) = %v, want bullish", got)
	}
	if got := DirectionFromScore(49.99); got != models.DirectionBearish {
		t.Errorf("DirectionFromScore(49.99) = %v, want bearish", got)
	}
}

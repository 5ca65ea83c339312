package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/ternarybob/arbor"
)

// MaxParseRetries is the number of corrective retries after the first call.
const MaxParseRetries = 2

var (
	// ErrMalformedOutput means the reply could not be decoded as JSON.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrValidation means the reply decoded but broke the schema rules.
	ErrValidation = errors.New("model output failed validation")
)

var (
	validate      = validator.New()
	jsonFenceRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	thinkMarkerRe = regexp.MustCompile(`</?think>`)
)

// GreeksCited are the Greeks an agent quoted; nil means not cited.
type GreeksCited struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	Rho   *float64 `json:"rho"`
}

// AsMap returns the cited Greeks keyed by name.
func (g GreeksCited) AsMap() map[string]float64 {
	out := map[string]float64{}
	for name, v := range map[string]*float64{
		"delta": g.Delta, "gamma": g.Gamma, "theta": g.Theta, "vega": g.Vega, "rho": g.Rho,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// AgentParsed is the raw bull or bear reply.
type AgentParsed struct {
	AgentRole           string      `json:"agent_role" validate:"required"`
	Analysis            string      `json:"analysis" validate:"required"`
	KeyPoints           []string    `json:"key_points" validate:"required"`
	Conviction          *float64    `json:"conviction" validate:"required,gte=0,lte=1"`
	ContractsReferenced []string    `json:"contracts_referenced" validate:"required"`
	GreeksCited         GreeksCited `json:"greeks_cited"`
}

func (p AgentParsed) textFields() []string {
	fields := []string{p.AgentRole, p.Analysis}
	fields = append(fields, p.KeyPoints...)
	return append(fields, p.ContractsReferenced...)
}

// ThesisParsed is the raw risk moderator reply.
type ThesisParsed struct {
	Direction         string   `json:"direction" validate:"required,oneof=bullish bearish neutral"`
	Conviction        *float64 `json:"conviction" validate:"required,gte=0,lte=1"`
	EntryRationale    string   `json:"entry_rationale" validate:"required"`
	RiskFactors       []string `json:"risk_factors" validate:"required"`
	RecommendedAction string   `json:"recommended_action" validate:"required"`
	BullSummary       string   `json:"bull_summary" validate:"required"`
	BearSummary       string   `json:"bear_summary" validate:"required"`
}

func (p ThesisParsed) textFields() []string {
	fields := []string{p.EntryRationale, p.RecommendedAction, p.BullSummary, p.BearSummary}
	return append(fields, p.RiskFactors...)
}

func (p *ThesisParsed) normalize() {
	p.Direction = strings.ToLower(strings.TrimSpace(p.Direction))
}

func (p *AgentParsed) normalize() {
	p.AgentRole = strings.ToLower(strings.TrimSpace(p.AgentRole))
}

type structuredOutput interface {
	textFields() []string
}

type normalizer interface {
	normalize()
}

// Usage accumulates token and timing usage over every call made for one role.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Attempts     int
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) add(resp *llm.ChatResponse) {
	u.Attempts++
	u.Model = resp.Model
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
	u.Duration += resp.Duration
}

// ExtractJSON strips a markdown fence around the reply if present.
func ExtractJSON(raw string) string {
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// decodeStructured decodes and validates one reply.
func decodeStructured[T structuredOutput](raw string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if n, ok := any(&out).(normalizer); ok {
		n.normalize()
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, field := range out.textFields() {
		if thinkMarkerRe.MatchString(field) {
			return out, fmt.Errorf("%w: reasoning trace tags in output", ErrValidation)
		}
	}
	return out, nil
}

// ParseWithRetry calls the model and decodes its reply into T. A reply that
// fails to decode or validate is echoed back with a corrective hint and the
// call repeated, up to maxRetries more times. Chat errors return at once.
// Usage covers every call, including the failed ones.
func ParseWithRetry[T structuredOutput](ctx context.Context, client llm.ChatClient, messages []llm.Message, schemaHint string, maxRetries int, logger arbor.ILogger) (T, Usage, error) {
	var (
		zero    T
		usage   Usage
		lastErr error
	)

	conv := make([]llm.Message, len(messages), len(messages)+2*maxRetries)
	copy(conv, messages)

	total := maxRetries + 1
	for attempt := 0; attempt < total; attempt++ {
		resp, err := client.Chat(ctx, conv)
		if err != nil {
			return zero, usage, err
		}
		usage.add(resp)

		out, err := decodeStructured[T](resp.Content)
		if err == nil {
			logger.Debug().
				Int("attempt", attempt+1).
				Int("max_attempts", total).
				Msgf("Parsed %T", out)
			return out, usage, nil
		}
		lastErr = err

		logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", total).
			Msgf("Parse/validation error for %T", out)

		if attempt < maxRetries {
			conv = append(conv,
				llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
				llm.Message{Role: llm.RoleUser, Content: "Your response was not valid JSON matching the schema. " +
					"Please try again with exactly this format: " + schemaHint},
			)
		}
	}

	return zero, usage, lastErr
}

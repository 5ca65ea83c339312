package debate

import (
	"fmt"
	"strings"

	"github.com/jobu711/optionalpha/internal/services/llm"
)

// PromptVersion is stamped into every system prompt.
const PromptVersion = "v1.0"

// Schema hints appended to corrective retries.
const (
	AgentSchemaHint = `{"agent_role": "bull|bear", "analysis": "...", "key_points": ["..."], ` +
		`"conviction": 0.0, "contracts_referenced": ["..."], ` +
		`"greeks_cited": {"delta": null, "gamma": null, "theta": null, "vega": null, "rho": null}}`

	ThesisSchemaHint = `{"direction": "bullish|bearish|neutral", "conviction": 0.0, ` +
		`"entry_rationale": "...", "risk_factors": ["..."], ` +
		`"recommended_action": "...", "bull_summary": "...", "bear_summary": "..."}`
)

// PromptSet holds the system prompts for the three debate roles.
// Build it once with DefaultPrompts and pass it to NewAgents.
type PromptSet struct {
	Version string
	Bull    string
	Bear    string
	Risk    string
}

// DefaultPrompts returns the current prompt set.
func DefaultPrompts() PromptSet {
	return PromptSet{
		Version: PromptVersion,
		Bull:    header(PromptVersion) + bullRole + agentOutputFormat("bull", "bullish"),
		Bear:    header(PromptVersion) + bearRole + agentOutputFormat("bear", "bearish"),
		Risk:    header(PromptVersion) + riskRole + riskOutputFormat,
	}
}

// BullMessages builds the bull conversation.
func (p PromptSet) BullMessages(deps BullDeps) []llm.Message {
	var b strings.Builder
	writeUserInput(&b, deps.Context)
	b.WriteString("Analyze the above market data and provide your bullish case as JSON.")
	return conversation(p.Bull, b.String())
}

// BearMessages builds the bear conversation, quoting the bull argument.
func (p PromptSet) BearMessages(deps BearDeps) []llm.Message {
	var b strings.Builder
	writeUserInput(&b, deps.Context)
	fmt.Fprintf(&b, "<opponent_argument>\n%s\n</opponent_argument>\n\n", deps.BullAnalysis)
	b.WriteString("Analyze the above market data. The bull has made their case above. " +
		"Provide your bearish counter-argument as JSON.")
	return conversation(p.Bear, b.String())
}

// RiskMessages builds the moderator conversation, quoting both sides.
func (p PromptSet) RiskMessages(deps RiskDeps) []llm.Message {
	var b strings.Builder
	writeUserInput(&b, deps.Context)
	fmt.Fprintf(&b, "<opponent_argument role=\"bull\">\n%s\n</opponent_argument>\n\n", deps.BullAnalysis)
	fmt.Fprintf(&b, "<opponent_argument role=\"bear\">\n%s\n</opponent_argument>\n\n", deps.BearAnalysis)
	b.WriteString("Synthesize both arguments above. " +
		"Produce your risk assessment and final trade thesis as JSON.")
	return conversation(p.Risk, b.String())
}

func writeUserInput(b *strings.Builder, contextText string) {
	fmt.Fprintf(b, "<user_input>\n%s\n</user_input>\n\n", contextText)
}

func conversation(system, user string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}

func header(version string) string {
	return "# VERSION: " + version + "\n\n"
}

const dataConstraints = `- Reference SPECIFIC strikes, expirations, and Greeks from the market data provided, not just a directional opinion.
`

const noFabrication = `- Do NOT fabricate data. If a data point is not provided, state that explicitly instead of inventing numbers.
- 500 words maximum.

`

const bullRole = `## Role
You are a bullish options analyst. Your job is to make the strongest possible data-driven case that the given options position will be profitable.

## Constraints
` + dataConstraints + `- Cite IV Rank and IV Percentile to justify whether options are cheap or expensive relative to the past year.
- Address the impact of theta decay given the days-to-expiration (DTE).
- Quantify max profit, max loss, and breakeven for the position you recommend.
- Acknowledge the single strongest counter-argument to your thesis.
` + noFabrication

const bearRole = `## Role
You are a bearish options analyst. Your job is to make the strongest possible data-driven case that the given options position carries excessive risk or will lose money.

## Constraints
` + dataConstraints + `- Quantify downside risk: potential IV crush, theta decay cost, and probability of loss.
- Cite IV Rank and IV Percentile to argue whether options are overpriced relative to realized volatility or historical norms.
- Address the impact of theta decay given the days-to-expiration (DTE).
- Quantify max profit, max loss, and breakeven for a bearish counter-position.
- Directly address the bull's specific claims. Do not ignore their strongest points.
- Acknowledge the single strongest argument in favor of the bullish case.
` + noFabrication

const riskRole = `## Role
You are a risk assessment analyst and debate moderator. You receive the arguments from both a bullish and a bearish options analyst and must synthesize them into a final, balanced trade thesis.

## Constraints
- Weigh both sides objectively. Identify the single strongest argument from each side.
- Evaluate whether each side properly cited specific strikes, expirations, Greeks, IV Rank, and theta risk.
- If neither side is convincingly stronger, declare the direction as "neutral".
- Produce a concrete recommended action (e.g. "buy the AAPL 190 call at $4.35" or "no trade: risk/reward unfavorable").
- List 2-4 specific risk factors with quantified impact where possible.
- Do NOT fabricate data. If a data point is not provided by either side, state that explicitly.
- 500 words maximum.

`

func agentOutputFormat(role, adjective string) string {
	return `## Output Format
Respond with a single JSON object matching this schema exactly:
{
  "agent_role": "` + role + `",
  "analysis": "<your full ` + adjective + ` analysis text>",
  "key_points": ["<point 1>", "<point 2>", "<point 3>"],
  "conviction": 0.0,
  "contracts_referenced": ["TICKER STRIKE TYPE EXPIRY"],
  "greeks_cited": {"delta": null, "gamma": null, "theta": null, "vega": null, "rho": null}
}

Field rules:
- conviction: float from 0.0 (no confidence) to 1.0 (maximum confidence).
- key_points: exactly 3-5 bullet points with specific data references.
- contracts_referenced: contracts you discuss, formatted as "TICKER STRIKE TYPE EXPIRY" (e.g. "AAPL 190 call 2025-04-18").
- greeks_cited: fill in any Greeks you reference; leave others as null.
- Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.
`
}

const riskOutputFormat = `## Output Format
Respond with a single JSON object matching this schema exactly:
{
  "direction": "bullish|bearish|neutral",
  "conviction": 0.0,
  "entry_rationale": "<why this trade should or should not be entered>",
  "risk_factors": ["<risk 1>", "<risk 2>"],
  "recommended_action": "<specific action or 'no trade'>",
  "bull_summary": "<1-2 sentence summary of the bull case>",
  "bear_summary": "<1-2 sentence summary of the bear case>"
}

Field rules:
- direction: exactly one of "bullish", "bearish", or "neutral".
- conviction: float from 0.0 (no confidence) to 1.0 (maximum confidence).
- risk_factors: 2-4 items, each with quantified impact if data permits.
- bull_summary and bear_summary: concise, factual summaries of what each side argued, not your opinion.
- Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.
`

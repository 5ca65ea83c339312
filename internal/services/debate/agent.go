package debate

import (
	"context"
	"fmt"

	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/llm"
	"github.com/ternarybob/arbor"
)

// Role identifies a debate participant.
type Role string

const (
	RoleBull Role = "bull"
	RoleBear Role = "bear"
	RoleRisk Role = "risk"
)

// BullDeps is the bull agent input.
type BullDeps struct {
	Context string
}

// BearDeps is the bear agent input; the bull argument is rebutted.
type BearDeps struct {
	Context      string
	BullAnalysis string
}

// RiskDeps is the moderator input; both arguments are weighed.
type RiskDeps struct {
	Context      string
	BullAnalysis string
	BearAnalysis string
}

// Agents runs the three debate roles against one chat backend.
type Agents struct {
	client          llm.ChatClient
	prompts         PromptSet
	maxParseRetries int
	logger          arbor.ILogger
}

// NewAgents creates the role runner. maxParseRetries < 0 selects MaxParseRetries.
func NewAgents(client llm.ChatClient, prompts PromptSet, maxParseRetries int, logger arbor.ILogger) *Agents {
	if maxParseRetries < 0 {
		maxParseRetries = MaxParseRetries
	}
	return &Agents{
		client:          client,
		prompts:         prompts,
		maxParseRetries: maxParseRetries,
		logger:          logger,
	}
}

// runRole is the single code path shared by all three roles.
func runRole[T structuredOutput](ctx context.Context, a *Agents, role Role, messages []llm.Message, schemaHint string) (T, Usage, error) {
	a.logger.Info().
		Str("role", string(role)).
		Str("prompt_version", a.prompts.Version).
		Msg("Starting agent")

	out, usage, err := ParseWithRetry[T](ctx, a.client, messages, schemaHint, a.maxParseRetries, a.logger)
	if err != nil {
		return out, usage, fmt.Errorf("%s agent: %w", role, err)
	}

	a.logger.Info().
		Str("role", string(role)).
		Int("attempts", usage.Attempts).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Msg("Agent completed")

	return out, usage, nil
}

// RunBull makes the bullish case.
func (a *Agents) RunBull(ctx context.Context, deps BullDeps) (*models.AgentResponse, Usage, error) {
	parsed, usage, err := runRole[AgentParsed](ctx, a, RoleBull, a.prompts.BullMessages(deps), AgentSchemaHint)
	if err != nil {
		return nil, usage, err
	}
	return toAgentResponse(parsed, usage), usage, nil
}

// RunBear rebuts the bull.
func (a *Agents) RunBear(ctx context.Context, deps BearDeps) (*models.AgentResponse, Usage, error) {
	parsed, usage, err := runRole[AgentParsed](ctx, a, RoleBear, a.prompts.BearMessages(deps), AgentSchemaHint)
	if err != nil {
		return nil, usage, err
	}
	return toAgentResponse(parsed, usage), usage, nil
}

// RunRisk weighs both sides and produces the thesis body.
func (a *Agents) RunRisk(ctx context.Context, deps RiskDeps) (*ThesisParsed, Usage, error) {
	parsed, usage, err := runRole[ThesisParsed](ctx, a, RoleRisk, a.prompts.RiskMessages(deps), ThesisSchemaHint)
	if err != nil {
		return nil, usage, err
	}
	return &parsed, usage, nil
}

func toAgentResponse(p AgentParsed, usage Usage) *models.AgentResponse {
	return &models.AgentResponse{
		AgentRole:           p.AgentRole,
		Analysis:            p.Analysis,
		KeyPoints:           p.KeyPoints,
		Conviction:          *p.Conviction,
		ContractsReferenced: p.ContractsReferenced,
		GreeksCited:         p.GreeksCited.AsMap(),
		ModelUsed:           usage.Model,
		InputTokens:         usage.InputTokens,
		OutputTokens:        usage.OutputTokens,
	}
}

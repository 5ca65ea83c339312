package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/ternarybob/arbor"
)

// ClaudeClient implements ChatClient using the Anthropic Messages API.
type ClaudeClient struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	maxTokens int
	retry     *RetryConfig
	sleep     SleepFunc
}

// convertMessagesToClaude converts messages to Claude MessageParam format and
// returns the system text separately for the System parameter.
func convertMessagesToClaude(messages []Message) ([]anthropic.MessageParam, string, error) {
	systemText, turns, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(turns))
	for _, msg := range turns {
		switch msg.Role {
		case RoleAssistant:
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// NewClaudeClient creates a Claude chat client.
// The API key comes from ANTHROPIC_API_KEY or claude.api_key.
func NewClaudeClient(claudeConfig *common.ClaudeConfig, logger arbor.ILogger, opts ...option.RequestOption) (*ClaudeClient, error) {
	apiKey, err := common.ResolveAPIKey("anthropic_api_key", claudeConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required for Claude (set ANTHROPIC_API_KEY or claude.api_key in config): %w", err)
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	timeout := common.ParseDurationOr(claudeConfig.Timeout, 180*time.Second)
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}, opts...)

	c := &ClaudeClient{
		config:    claudeConfig,
		logger:    logger,
		client:    anthropic.NewClient(clientOpts...),
		maxTokens: maxTokens,
		retry:     NewDefaultRetryConfig(),
		sleep:     sleepCtx,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Float32("temperature", claudeConfig.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Claude client initialized")

	return c, nil
}

// Chat generates a completion for the conversation.
func (c *ClaudeClient) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.maxTokens),
		Messages:  claudeMessages,
	}
	if c.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.config.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText + "\n\nRespond with a single JSON object and nothing else."},
		}
	}

	start := time.Now()
	resp, err := withRateLimitRetry(ctx, c.Provider(), c.retry, c.sleep, c.logger,
		func(ctx context.Context) (*anthropic.Message, error) {
			return c.client.Messages.New(ctx, params)
		})
	if err != nil {
		if isAnthropicNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, c.config.Model)
		}
		c.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Claude chat completion failed")
		if isAnthropicAPIError(err) {
			return nil, backendFailure(c.Provider(), "chat completion", err)
		}
		return nil, fmt.Errorf("claude chat completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := &ChatResponse{
		Content:      StripThinkTags(text.String()),
		Model:        string(resp.Model),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Duration:     time.Since(start),
	}
	if out.Model == "" {
		out.Model = c.config.Model
	}

	c.logger.Info().
		Str("model", out.Model).
		Int("input_tokens", out.InputTokens).
		Int("output_tokens", out.OutputTokens).
		Dur("duration", out.Duration).
		Msg("Claude chat completed")

	return out, nil
}

// ValidateModel sends a one-token ping to the configured model.
func (c *ClaudeClient) ValidateModel(ctx context.Context) (bool, error) {
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	switch {
	case err == nil:
		return true, nil
	case isAnthropicNotFound(err):
		c.logger.Warn().Str("model", c.config.Model).Msg("Claude model not found")
		return false, nil
	case IsConnectError(err):
		c.logger.Warn().Err(err).Msg("Claude API unreachable")
		return false, nil
	case isAnthropicAPIError(err):
		c.logger.Warn().Str("model", c.config.Model).Err(err).Msg("Claude ping rejected")
		return false, backendFailure(c.Provider(), "ping", err)
	default:
		return false, fmt.Errorf("claude ping failed: %w", err)
	}
}

// Model returns the configured model name.
func (c *ClaudeClient) Model() string { return c.config.Model }

// Provider returns "claude".
func (c *ClaudeClient) Provider() string { return string(common.LLMProviderClaude) }

func isAnthropicNotFound(err error) bool {
	var apiErr *anthropic.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func isAnthropicAPIError(err error) bool {
	var apiErr *anthropic.Error
	return errors.As(err, &apiErr)
}

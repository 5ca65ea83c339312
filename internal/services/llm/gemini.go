package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// GeminiClient implements ChatClient using the Google Gemini API.
type GeminiClient struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *RetryConfig
	sleep   SleepFunc
}

// convertMessagesToGemini converts messages to Gemini Content format and
// returns the system text separately for SystemInstruction.
func convertMessagesToGemini(messages []Message) ([]*genai.Content, string, error) {
	systemText, turns, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, msg := range turns {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiClient creates a Gemini chat client.
// The API key comes from GEMINI_API_KEY, GOOGLE_API_KEY or gemini.api_key.
func NewGeminiClient(ctx context.Context, geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiClient, error) {
	apiKey, err := common.ResolveAPIKey("gemini_api_key", geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key in config): %w", err)
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	c := &GeminiClient{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		timeout: common.ParseDurationOr(geminiConfig.Timeout, 180*time.Second),
		retry:   NewDefaultRetryConfig(),
		sleep:   sleepCtx,
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Dur("timeout", c.timeout).
		Float32("temperature", geminiConfig.Temperature).
		Msg("Gemini client initialized")

	return c, nil
}

// Chat generates a JSON completion for the conversation.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if c.config.Temperature > 0 {
		config.Temperature = genai.Ptr(c.config.Temperature)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := withRateLimitRetry(timeoutCtx, c.Provider(), c.retry, c.sleep, c.logger,
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			return c.client.Models.GenerateContent(ctx, c.config.Model, contents, config)
		})
	if err != nil {
		if isGeminiNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, c.config.Model)
		}
		c.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Gemini chat completion failed")
		if isGeminiAPIError(err) {
			return nil, backendFailure(c.Provider(), "chat completion", err)
		}
		return nil, fmt.Errorf("gemini chat completion failed: %w", err)
	}

	out := &ChatResponse{
		Content:  StripThinkTags(resp.Text()),
		Model:    resp.ModelVersion,
		Duration: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if out.Model == "" {
		out.Model = c.config.Model
	}

	c.logger.Info().
		Str("model", out.Model).
		Int("input_tokens", out.InputTokens).
		Int("output_tokens", out.OutputTokens).
		Dur("duration", out.Duration).
		Msg("Gemini chat completed")

	return out, nil
}

// ValidateModel looks up the configured model.
func (c *GeminiClient) ValidateModel(ctx context.Context) (bool, error) {
	_, err := c.client.Models.Get(ctx, c.config.Model, nil)
	switch {
	case err == nil:
		return true, nil
	case isGeminiNotFound(err):
		c.logger.Warn().Str("model", c.config.Model).Msg("Gemini model not found")
		return false, nil
	case IsConnectError(err):
		c.logger.Warn().Err(err).Msg("Gemini API unreachable")
		return false, nil
	case isGeminiAPIError(err):
		c.logger.Warn().Str("model", c.config.Model).Err(err).Msg("Gemini model lookup rejected")
		return false, backendFailure(c.Provider(), "model lookup", err)
	default:
		return false, fmt.Errorf("gemini model lookup failed: %w", err)
	}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.config.Model }

// Provider returns "gemini".
func (c *GeminiClient) Provider() string { return string(common.LLMProviderGemini) }

func isGeminiNotFound(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 404") || strings.Contains(msg, "NOT_FOUND")
}

func isGeminiAPIError(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr)
}

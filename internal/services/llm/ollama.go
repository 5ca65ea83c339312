package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/ternarybob/arbor"
)

// OllamaRetryDelays are the waits between connection attempts; one final
// attempt follows the last delay.
var OllamaRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// OllamaClient talks to a local Ollama server over its REST API.
type OllamaClient struct {
	host        string
	model       string
	numCtx      int
	temperature float32
	httpClient  *http.Client
	retryDelays []time.Duration
	sleep       SleepFunc
	logger      arbor.ILogger
}

// OllamaOption customises an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) { o.httpClient = c }
}

// WithRetryDelays replaces the connection retry schedule.
func WithRetryDelays(delays []time.Duration) OllamaOption {
	return func(o *OllamaClient) { o.retryDelays = delays }
}

// WithSleepFunc replaces the wait between retries.
func WithSleepFunc(fn SleepFunc) OllamaOption {
	return func(o *OllamaClient) { o.sleep = fn }
}

// NewOllamaClient creates a client for the configured host and model.
func NewOllamaClient(config *common.OllamaConfig, logger arbor.ILogger, opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		host:        strings.TrimRight(config.Host, "/"),
		model:       config.Model,
		numCtx:      config.NumCtx,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: common.ParseDurationOr(config.Timeout, 180*time.Second)},
		retryDelays: OllamaRetryDelays,
		sleep:       sleepCtx,
		logger:      logger,
	}
	if c.host == "" {
		c.host = "http://localhost:11434"
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Debug().
		Str("host", c.host).
		Str("model", c.model).
		Int("num_ctx", c.numCtx).
		Msg("Ollama client initialized")

	return c
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	TotalDuration   int64   `json:"total_duration"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// statusError is a non-2xx reply from the server.
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap makes every non-2xx reply match ErrBackend.
func (e *statusError) Unwrap() error { return ErrBackend }

// Chat sends the conversation to /api/chat with JSON output enforced.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty for chat completion")
	}

	options := map[string]any{}
	if c.numCtx > 0 {
		options["num_ctx"] = c.numCtx
	}
	if c.temperature > 0 {
		options["temperature"] = c.temperature
	}
	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options:  options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	start := time.Now()
	var out ollamaChatResponse
	if err := c.postWithRetry(ctx, "/api/chat", body, &out); err != nil {
		return nil, err
	}

	resp := &ChatResponse{
		Content:      StripThinkTags(out.Message.Content),
		Model:        out.Model,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		Duration:     time.Duration(out.TotalDuration),
	}
	if resp.Model == "" {
		resp.Model = c.model
	}
	if resp.Duration <= 0 {
		resp.Duration = time.Since(start)
	}

	c.logger.Info().
		Str("model", resp.Model).
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("Ollama chat completed")

	return resp, nil
}

// ValidateModel asks /api/show for the configured model.
func (c *OllamaClient) ValidateModel(ctx context.Context) (bool, error) {
	body, err := json.Marshal(map[string]string{"model": c.model})
	if err != nil {
		return false, err
	}

	err = c.post(ctx, "/api/show", body, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrModelNotFound):
		c.logger.Warn().Str("model", c.model).Msg("Model not found on Ollama server")
		return false, nil
	case IsConnectError(err):
		c.logger.Warn().Str("host", c.host).Err(err).Msg("Ollama server unreachable")
		return false, nil
	case errors.Is(err, ErrBackend):
		c.logger.Warn().Str("model", c.model).Err(err).Msg("Ollama model check failed")
		return false, fmt.Errorf("ollama model check: %w", err)
	default:
		return false, err
	}
}

// Model returns the configured model tag.
func (c *OllamaClient) Model() string { return c.model }

// Provider returns "ollama".
func (c *OllamaClient) Provider() string { return string(common.LLMProviderOllama) }

// postWithRetry retries connection failures and 5xx replies on the configured
// schedule. A missing model fails immediately.
func (c *OllamaClient) postWithRetry(ctx context.Context, path string, body []byte, out any) error {
	var lastErr error
	attempts := len(c.retryDelays) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		err := c.post(ctx, path, body, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrModelNotFound) {
			c.logger.Error().Str("model", c.model).Msg("Model not found")
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("ollama %s: %w", path, ctx.Err())
		}
		if !isRetryableOllamaError(err) {
			return err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := c.retryDelays[attempt]
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("retry_in", delay).
			Err(err).
			Msg("Ollama request failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("ollama %s: %w", path, err)
		}
	}

	c.logger.Error().
		Int("attempts", attempts).
		Err(lastErr).
		Msg("Ollama unreachable after retries")

	if IsConnectError(lastErr) {
		return unreachable("ollama", lastErr)
	}
	return lastErr
}

func (c *OllamaClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrModelNotFound, c.model)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ollamaError
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &statusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return nil
}

func isRetryableOllamaError(err error) bool {
	if IsConnectError(err) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.StatusCode >= 500
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

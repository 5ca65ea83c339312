package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/ternarybob/arbor"
)

// DetectProvider determines the backend from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - "ollama/llama3.1:8b" or "llama3.1:8b" -> Ollama (tag syntax)
// - Empty string -> fallback
func DetectProvider(model string, fallback common.LLMProvider) common.LLMProvider {
	if model == "" {
		return fallback
	}

	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "claude/"), strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude-"):
		return common.LLMProviderClaude
	case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "google/"), strings.HasPrefix(model, "gemini-"):
		return common.LLMProviderGemini
	case strings.HasPrefix(model, "ollama/"), strings.Contains(model, ":"):
		return common.LLMProviderOllama
	}

	return fallback
}

// NormalizeModel removes a provider prefix from the model name if present
func NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/", "ollama/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// NewChatClient creates the backend selected by llm.default_provider.
// A non-empty model overrides both the provider and the configured model name.
func NewChatClient(ctx context.Context, cfg *common.Config, model string, logger arbor.ILogger) (ChatClient, error) {
	provider := DetectProvider(model, cfg.LLM.DefaultProvider)
	name := NormalizeModel(model)

	logger.Info().
		Str("provider", string(provider)).
		Str("model", name).
		Msg("Initializing LLM backend")

	switch provider {
	case common.LLMProviderOllama:
		ollamaConfig := cfg.Ollama
		if name != "" {
			ollamaConfig.Model = name
		}
		return NewOllamaClient(&ollamaConfig, logger), nil

	case common.LLMProviderClaude:
		claudeConfig := cfg.Claude
		if name != "" {
			claudeConfig.Model = name
		}
		client, err := NewClaudeClient(&claudeConfig, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	case common.LLMProviderGemini:
		geminiConfig := cfg.Gemini
		if name != "" {
			geminiConfig.Model = name
		}
		client, err := NewGeminiClient(ctx, &geminiConfig, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

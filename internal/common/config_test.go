package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "optionalpha.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, LLMProviderOllama, config.LLM.DefaultProvider)
	assert.Equal(t, "180s", config.LLM.AgentTimeout)
	assert.Equal(t, 2, config.LLM.MaxParseRetries)
	assert.Equal(t, 5, config.RateLimit.MaxConcurrent)
	assert.Equal(t, 2.0, config.RateLimit.RequestsPerSecond)
	assert.Equal(t, 45, config.Recommend.TargetDTE)
	assert.Equal(t, 0.15, config.Scan.CatalystWeight)
	assert.Equal(t, "SPY", config.Health.Canary)
	assert.Equal(t, "10s", config.Health.MarketTimeout)
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	base := writeConfig(t, `
[llm]
default_provider = "claude"

[scan]
watchlist = ["AAPL", "MSFT"]
top_n = 5
`)
	override := writeConfig(t, `
[scan]
top_n = 3
`)

	config, err := LoadFromFiles(base, "", override)
	require.NoError(t, err)

	assert.Equal(t, LLMProviderClaude, config.LLM.DefaultProvider)
	assert.Equal(t, []string{"AAPL", "MSFT"}, config.Scan.Watchlist)
	assert.Equal(t, 3, config.Scan.TopN)
	// Untouched sections keep defaults
	assert.Equal(t, "http://localhost:11434", config.Ollama.Host)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("OPTIONALPHA_LLM_PROVIDER", "GEMINI")
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")
	t.Setenv("OPTIONALPHA_WATCHLIST", "spy, qqq,,iwm")
	t.Setenv("OPTIONALPHA_SERVER_PORT", "9000")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, LLMProviderGemini, config.LLM.DefaultProvider)
	assert.Equal(t, "http://10.0.0.5:11434", config.Ollama.Host)
	assert.Equal(t, []string{"spy", "qqq", "iwm"}, config.Scan.Watchlist)
	assert.Equal(t, 9000, config.Server.Port)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := writeConfig(t, `[llm`)
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)

	invalid := writeConfig(t, `
[llm]
default_provider = "openai"
`)
	_, err = LoadFromFiles(invalid)
	assert.ErrorContains(t, err, "default_provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad timeout", func(c *Config) { c.LLM.AgentTimeout = "three minutes" }, true},
		{"catalyst weight above one", func(c *Config) { c.Scan.CatalystWeight = 1.5 }, true},
		{"valid schedule", func(c *Config) { c.Scan.Schedule = "30 16 * * 1-5" }, false},
		{"every minute schedule", func(c *Config) { c.Scan.Schedule = "* * * * *" }, true},
		{"short interval schedule", func(c *Config) { c.Scan.Schedule = "*/2 * * * *" }, true},
		{"garbage schedule", func(c *Config) { c.Scan.Schedule = "not cron" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPTIONALPHA_CLAUDE_API_KEY", "")

	_, err := ResolveAPIKey("anthropic_api_key", "")
	assert.Error(t, err)

	key, err := ResolveAPIKey("anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	key, err = ResolveAPIKey("anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 3*time.Minute, ParseDurationOr("", 3*time.Minute))
	assert.Equal(t, 3*time.Minute, ParseDurationOr("junk", 3*time.Minute))
	assert.Equal(t, 3*time.Minute, ParseDurationOr("-1s", 3*time.Minute))
	assert.Equal(t, 10*time.Second, ParseDurationOr("10s", 3*time.Minute))
}

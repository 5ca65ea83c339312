package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	LLM         LLMConfig       `toml:"llm"`
	Ollama      OllamaConfig    `toml:"ollama"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	EODHD       EODHDConfig     `toml:"eodhd"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Scan        ScanConfig      `toml:"scan"`
	Recommend   RecommendConfig `toml:"recommend"`
	Metrics     MetricsConfig   `toml:"metrics"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Health      HealthConfig    `toml:"health"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for console logs (default: "15:04:05")
}

// LLMProvider represents the debate backend
type LLMProvider string

const (
	LLMProviderOllama LLMProvider = "ollama"
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig selects the debate backend and bounds each agent call
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`  // ollama | claude | gemini
	AgentTimeout    string      `toml:"agent_timeout"`     // Per-agent wall clock timeout (default: "180s")
	ValidateTimeout string      `toml:"validate_timeout"`  // Model availability check timeout (default: "10s")
	MaxParseRetries int         `toml:"max_parse_retries"` // Corrective retries on malformed output (default: 2)
}

// OllamaConfig contains local Ollama server configuration
type OllamaConfig struct {
	Host        string  `toml:"host"`        // Base URL (default: "http://localhost:11434")
	Model       string  `toml:"model"`       // Model tag (default: "llama3.1:8b")
	NumCtx      int     `toml:"num_ctx"`     // Context window passed as options.num_ctx (default: 8192)
	Timeout     string  `toml:"timeout"`     // HTTP timeout (default: "180s")
	Temperature float32 `toml:"temperature"` // 0 leaves the model default
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY takes precedence)
	Model       string  `toml:"model"`       // Model name
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Request timeout (default: "180s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Gemini API key (GEMINI_API_KEY takes precedence)
	Model       string  `toml:"model"`       // Model name
	Timeout     string  `toml:"timeout"`     // Request timeout (default: "180s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// EODHDConfig contains market data API configuration
type EODHDConfig struct {
	APIKey    string `toml:"api_key"`    // EODHD API token
	BaseURL   string `toml:"base_url"`   // Override for testing (default: "https://eodhd.com/api")
	RateLimit int    `toml:"rate_limit"` // Client-side requests per second (default: 10)
	Timeout   string `toml:"timeout"`    // HTTP timeout (default: "30s")
}

// RateLimitConfig gates every market data fetch
type RateLimitConfig struct {
	MaxConcurrent     int     `toml:"max_concurrent"`      // In-flight fetches (default: 5)
	RequestsPerSecond float64 `toml:"requests_per_second"` // Sustained rate (default: 2)
	MaxRetries        int     `toml:"max_retries"`         // Retries on HTTP 429 (default: 5)
}

// ScanConfig controls the universe scan pipeline
type ScanConfig struct {
	Watchlist      []string `toml:"watchlist"`       // Tickers scanned when none are given
	UniverseFile   string   `toml:"universe_file"`   // Optional YAML/JSON watchlist file
	TopN           int      `toml:"top_n"`           // Tickers that get a contract recommendation (default: 10)
	MinScore       float64  `toml:"min_score"`       // Extra cut-off above the composite minimum (default: 50)
	Schedule       string   `toml:"schedule"`        // Cron expression for scheduled scans, empty disables
	LookbackDays   int      `toml:"lookback_days"`   // Daily bars fetched per ticker (default: 400)
	CatalystWeight float64  `toml:"catalyst_weight"` // Earnings proximity blend weight (default: 0.15)
}

// RecommendConfig controls contract selection
type RecommendConfig struct {
	TargetDTE int `toml:"target_dte"` // Ideal days to expiration (default: 45)
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // default: "/metrics"
}

// WebSocketConfig controls live pushes on /ws
type WebSocketConfig struct {
	ProgressInterval string `toml:"progress_interval"` // Minimum gap between intermediate scan progress messages (default: "250ms")
}

// HealthConfig controls the checks behind /api/health?deep=1
type HealthConfig struct {
	Canary         string `toml:"canary"`          // Ticker quoted by the market data check (default: "SPY")
	LLMTimeout     string `toml:"llm_timeout"`     // default: "5s"
	MarketTimeout  string `toml:"market_timeout"`  // default: "10s"
	StorageTimeout string `toml:"storage_timeout"` // default: "5s"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderOllama,
			AgentTimeout:    "180s",
			ValidateTimeout: "10s",
			MaxParseRetries: 2,
		},
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Model:   "llama3.1:8b",
			NumCtx:  8192,
			Timeout: "180s",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Timeout:     "180s",
			Temperature: 0.3,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "180s",
			Temperature: 0.3,
		},
		EODHD: EODHDConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
			Timeout:   "30s",
		},
		RateLimit: RateLimitConfig{
			MaxConcurrent:     5,
			RequestsPerSecond: 2.0,
			MaxRetries:        5,
		},
		Scan: ScanConfig{
			Watchlist:      []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "SPY", "QQQ", "AMD"},
			TopN:           10,
			MinScore:       50,
			LookbackDays:   400,
			CatalystWeight: 0.15,
		},
		Recommend: RecommendConfig{
			TargetDTE: 45,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		WebSocket: WebSocketConfig{
			ProgressInterval: "250ms",
		},
		Health: HealthConfig{
			Canary:         "SPY",
			LLMTimeout:     "5s",
			MarketTimeout:  "10s",
			StorageTimeout: "5s",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("OPTIONALPHA_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("OPTIONALPHA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("OPTIONALPHA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("OPTIONALPHA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("OPTIONALPHA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("OPTIONALPHA_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// LLM configuration
	if provider := os.Getenv("OPTIONALPHA_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if timeout := os.Getenv("OPTIONALPHA_AGENT_TIMEOUT"); timeout != "" {
		config.LLM.AgentTimeout = timeout
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		config.Ollama.Host = normalizeOllamaHost(host)
	}
	if model := os.Getenv("OPTIONALPHA_OLLAMA_MODEL"); model != "" {
		config.Ollama.Model = model
	}
	if model := os.Getenv("OPTIONALPHA_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if model := os.Getenv("OPTIONALPHA_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Market data configuration
	if baseURL := os.Getenv("OPTIONALPHA_EODHD_BASE_URL"); baseURL != "" {
		config.EODHD.BaseURL = baseURL
	}

	// Scan configuration
	if watchlist := os.Getenv("OPTIONALPHA_WATCHLIST"); watchlist != "" {
		config.Scan.Watchlist = splitList(watchlist)
	}
	if schedule := os.Getenv("OPTIONALPHA_SCAN_SCHEDULE"); schedule != "" {
		config.Scan.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → config fallback → error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"anthropic_api_key": {"ANTHROPIC_API_KEY", "OPTIONALPHA_CLAUDE_API_KEY"},
		"gemini_api_key":    {"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPTIONALPHA_GEMINI_API_KEY"},
		"eodhd_api_key":     {"EODHD_API_KEY", "OPTIONALPHA_EODHD_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	switch c.LLM.DefaultProvider {
	case LLMProviderOllama, LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm.default_provider '%s': must be ollama, claude or gemini", c.LLM.DefaultProvider)
	}

	for name, value := range map[string]string{
		"llm.agent_timeout":           c.LLM.AgentTimeout,
		"llm.validate_timeout":        c.LLM.ValidateTimeout,
		"ollama.timeout":              c.Ollama.Timeout,
		"claude.timeout":              c.Claude.Timeout,
		"gemini.timeout":              c.Gemini.Timeout,
		"eodhd.timeout":               c.EODHD.Timeout,
		"websocket.progress_interval": c.WebSocket.ProgressInterval,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, value, err)
		}
	}

	if c.Scan.CatalystWeight < 0 || c.Scan.CatalystWeight > 1 {
		return fmt.Errorf("scan.catalyst_weight must be within [0, 1], got %v", c.Scan.CatalystWeight)
	}

	if c.Scan.Schedule != "" {
		if err := ValidateSchedule(c.Scan.Schedule); err != nil {
			return fmt.Errorf("invalid scan.schedule: %w", err)
		}
	}

	return nil
}

// ValidateSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	minuteField := strings.Fields(schedule)[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// splitList splits a comma-separated value, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeOllamaHost accepts OLLAMA_HOST in the forms Ollama itself accepts ("0.0.0.0:11434", "host")
func normalizeOllamaHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}

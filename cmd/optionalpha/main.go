package main

import (
	"fmt"
	"os"

	"github.com/jobu711/optionalpha/internal/app"
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported
	serverPort  int
	serverHost  string
	modelName   string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "optionalpha",
	Short: "Options research assistant",
	Long: `OptionAlpha scores a universe of tickers on technical indicators, debates
the best candidates with an LLM bull/bear/risk panel and recommends a contract.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	flags.StringVar(&serverHost, "host", "", "Server host (overrides config)")
	flags.StringVar(&modelName, "model", "", "Debate model (overrides config)")

	rootCmd.AddCommand(serveCmd, scanCmd, debateCmd, versionCmd)
}

func main() {
	common.LoadVersionInfo()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence (REQUIRED ORDER):
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"optionalpha.toml", "deployments/local/optionalpha.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)
	logger = common.InitLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	return nil
}

// newApp builds the application for one command.
func newApp() (*app.App, error) {
	var opts []app.Option
	if modelName != "" {
		opts = append(opts, app.WithModel(modelName))
	}

	application, err := app.New(config, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

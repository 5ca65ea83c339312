package main

import (
	"fmt"
	"os"

	"github.com/jobu711/optionalpha/internal/app"
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	common.LoadVersionInfo()

	configPath := os.Getenv("OPTIONALPHA_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("optionalpha.toml"); err == nil {
			configPath = "optionalpha.toml"
		}
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol; log to file only
	config.Logging.Output = []string{"file"}
	config.Scan.Schedule = ""
	logger := common.InitLogger(config)

	application, err := app.New(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"optionalpha",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	storage := application.StorageManager
	mcpServer.AddTool(createGetThesisTool(), handleGetThesis(storage.ThesisStorage(), logger))
	mcpServer.AddTool(createListScoresTool(), handleListScores(storage.ScanStorage(), logger))
	mcpServer.AddTool(createTickerHistoryTool(), handleTickerHistory(storage.ScanStorage(), logger))
	mcpServer.AddTool(createRecommendContractTool(), handleRecommendContract(application.AnalysisService, logger))
	mcpServer.AddTool(createFallbackThesisTool(), handleFallbackThesis(logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}

package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetThesisTool returns the get_thesis tool definition
func createGetThesisTool() mcp.Tool {
	return mcp.NewTool("get_thesis",
		mcp.WithDescription("Latest persisted trade thesis for a ticker, as a Markdown report"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol, e.g. AAPL or BRK-B"),
		),
		mcp.WithNumber("history",
			mcp.Description("Also list this many earlier theses (default: 0, max: 20)"),
		),
	)
}

// createListScoresTool returns the list_scores tool definition
func createListScoresTool() mcp.Tool {
	return mcp.NewTool("list_scores",
		mcp.WithDescription("Ranked ticker scores from a scan (the most recent completed scan by default)"),
		mcp.WithString("scan_id",
			mcp.Description("Scan run ID (format: scan_{uuid})"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max scores (default: 10, max: 100)"),
		),
	)
}

// createTickerHistoryTool returns the ticker_history tool definition
func createTickerHistoryTool() mcp.Tool {
	return mcp.NewTool("ticker_history",
		mcp.WithDescription("A ticker's composite scores across past scans, newest first"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max scans (default: 10, max: 100)"),
		),
	)
}

// createRecommendContractTool returns the recommend_contract tool definition
func createRecommendContractTool() mcp.Tool {
	return mcp.NewTool("recommend_contract",
		mcp.WithDescription("Pick the option contract closest to the target delta and DTE from the live chain"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol"),
		),
		mcp.WithString("direction",
			mcp.Description("Trade direction; inferred from indicators when omitted"),
			mcp.Enum("bullish", "bearish", "neutral"),
		),
	)
}

// createFallbackThesisTool returns the fallback_thesis tool definition
func createFallbackThesisTool() mcp.Tool {
	return mcp.NewTool("fallback_thesis",
		mcp.WithDescription("Data-driven thesis from scores alone, without an LLM"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol"),
		),
		mcp.WithNumber("score",
			mcp.Required(),
			mcp.Description("Composite score 0-100"),
		),
		mcp.WithString("direction",
			mcp.Required(),
			mcp.Description("Signal direction"),
			mcp.Enum("bullish", "bearish", "neutral"),
		),
		mcp.WithNumber("iv_rank",
			mcp.Description("IV rank 0-100 (default: 50)"),
		),
		mcp.WithNumber("rsi",
			mcp.Description("RSI(14) (default: 50)"),
		),
		mcp.WithNumber("adx",
			mcp.Description("ADX; omitted means unknown"),
		),
	)
}

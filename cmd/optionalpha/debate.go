package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jobu711/optionalpha/internal/services/analysis"
	"github.com/jobu711/optionalpha/internal/services/report"
	"github.com/spf13/cobra"
)

var debateCmd = &cobra.Command{
	Use:   "debate TICKER",
	Short: "Run the bull/bear/risk debate for one ticker",
	Long: `Builds a market snapshot for TICKER, runs the three agent debate and prints
the thesis as a Markdown report. When the model is unavailable a data-driven
thesis is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebate,
}

var (
	debateScore  float64
	debateIVRank float64
	debateRSI    float64
	debateADX    float64
	debateFormat string
	debateOutput string
)

func init() {
	flags := debateCmd.Flags()
	flags.Float64Var(&debateScore, "score", 0, "Composite score 0-100 (default 50)")
	flags.Float64Var(&debateIVRank, "iv-rank", 0, "IV rank 0-100 (overrides the chain estimate)")
	flags.Float64Var(&debateRSI, "rsi", 0, "RSI(14) (overrides the computed value)")
	flags.Float64Var(&debateADX, "adx", 0, "ADX (overrides the computed value)")
	flags.StringVar(&debateFormat, "format", analysis.FormatMarkdown, "Report format: md, html or pdf")
	flags.StringVarP(&debateOutput, "output", "o", "", "Write the report to a file (pdf requires it)")
}

func runDebate(cmd *cobra.Command, args []string) error {
	req := analysis.DebateRequest{Ticker: args[0]}
	flags := cmd.Flags()
	if flags.Changed("score") {
		req.Score = &debateScore
	}
	if flags.Changed("iv-rank") {
		req.IVRank = &debateIVRank
	}
	if flags.Changed("rsi") {
		req.RSI = &debateRSI
	}
	if flags.Changed("adx") {
		req.ADX = &debateADX
	}
	if debateFormat == analysis.FormatPDF && debateOutput == "" {
		return fmt.Errorf("--format pdf requires --output")
	}

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := application.AnalysisService.Debate(ctx, req)
	if err != nil {
		return err
	}

	rendered, err := application.AnalysisService.Render(report.Input{
		Thesis:   result.Thesis,
		Context:  result.Context,
		Contract: result.Contract,
		Signals:  result.Signals,
	}, debateFormat)
	if err != nil {
		return err
	}

	if debateOutput != "" {
		if err := os.WriteFile(debateOutput, rendered.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info().Str("path", debateOutput).Bool("fallback", result.Fallback).Msg("Report written")
		return nil
	}

	_, err = cmd.OutOrStdout().Write(rendered.Body)
	return err
}

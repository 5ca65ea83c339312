package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/jobu711/optionalpha/internal/services/scan"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Score a universe and print the top candidates",
	Long: `Scores the default watchlist, a named watchlist, a ticker list or a
universe file. A universe file carrying raw indicator values skips the price
history fetch.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanUniverse  string
	scanTickers   []string
	scanWatchlist string
)

func init() {
	scanCmd.Flags().StringVar(&scanUniverse, "universe", "", "YAML or JSON universe file")
	scanCmd.Flags().StringSliceVar(&scanTickers, "tickers", nil, "Comma separated tickers (overrides the watchlist)")
	scanCmd.Flags().StringVar(&scanWatchlist, "watchlist", "", "Saved watchlist name or ID")
}

func runScan(cmd *cobra.Command, args []string) error {
	req := scan.Request{Tickers: scanTickers, Watchlist: scanWatchlist}
	if scanUniverse != "" {
		file, err := scan.LoadUniverseFile(scanUniverse)
		if err != nil {
			return err
		}
		req = file.Request()
	}

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := application.ScanService.Run(ctx, req, func(p scan.Progress) {
		logger.Info().
			Int("phase", p.Phase).
			Int("current", p.Current).
			Int("total", p.Total).
			Msg(p.Message)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scan %s (%s): %d tickers scored in %s\n\n", result.Run.ID, result.Run.Source, len(result.Scores), result.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTICKER\tSCORE\tDIRECTION\tCONTRACT")
	for _, s := range result.Scores {
		contract := "-"
		if c := s.Recommendation; c != nil {
			contract = c.Symbol()
			if c.Greeks != nil {
				contract = fmt.Sprintf("%s (delta %.2f)", contract, c.Greeks.Delta)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\n", s.Rank, s.Ticker, s.Score, s.Direction, contract)
	}
	return tw.Flush()
}

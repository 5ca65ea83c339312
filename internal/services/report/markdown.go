package report

import (
	"fmt"
	"strings"

	"github.com/jobu711/optionalpha/internal/models"
)

// DataSource is named in the report metadata.
const DataSource = "EODHD"

const timestampLayout = "2006-01-02T15:04:05Z"

// Input is everything a report can show. Contract and Signals are optional.
type Input struct {
	Thesis   models.TradeThesis
	Context  models.MarketContext
	Contract *models.OptionContract
	Signals  map[string]float64
}

// Markdown renders a GitHub-flavoured Markdown report. Sections appear in a
// fixed order and the disclaimer is always last.
func Markdown(in Input) string {
	var b strings.Builder
	writeHeader(&b, in)
	writeSnapshot(&b, in)
	writeStrategy(&b, in.Thesis)
	writeDebate(&b, in.Thesis)
	writeKeyFactors(&b, in.Thesis)
	writeRisks(&b, in.Thesis)
	writeMetadata(&b, in)
	writeDisclaimer(&b)
	return b.String()
}

func writeHeader(b *strings.Builder, in Input) {
	title := []string{fmt.Sprintf("**%s**", in.Context.Ticker)}
	if c := in.Contract; c != nil {
		title = append(title,
			fmt.Sprintf("$%s %s", formatPrice(c.Strike), strings.ToUpper(string(c.OptionType))),
			"Exp: "+c.Expiration.Format("2006-01-02"),
			fmt.Sprintf("%d DTE", c.DTE(in.Context.DataTimestamp)),
		)
	}
	fmt.Fprintf(b, "# Options Analysis: %s\n\n", strings.Join(title, " | "))
	fmt.Fprintf(b, "*Generated: %s*\n\n", in.Context.DataTimestamp.UTC().Format(timestampLayout))
}

func writeSnapshot(b *strings.Builder, in Input) {
	mc := in.Context
	b.WriteString("## Market Snapshot\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(b, "| Price | $%s |\n", formatPrice(mc.CurrentPrice))
	fmt.Fprintf(b, "| 52W High | $%s |\n", formatPrice(mc.Price52wHigh))
	fmt.Fprintf(b, "| 52W Low | $%s |\n", formatPrice(mc.Price52wLow))
	fmt.Fprintf(b, "| IV Rank | %.1f |\n", mc.IVRank)
	fmt.Fprintf(b, "| IV Percentile | %.1f |\n", mc.IVPercentile)
	fmt.Fprintf(b, "| RSI (14) | %.1f |\n", mc.RSI14)
	fmt.Fprintf(b, "| MACD Signal | %s |\n", mc.MACDSignal)
	fmt.Fprintf(b, "| Put/Call Ratio | %.2f |\n", mc.PutCallRatio)
	if mc.NextEarnings != nil {
		fmt.Fprintf(b, "| Next Earnings | %s |\n", mc.NextEarnings.Format("2006-01-02"))
	}
	b.WriteString("\n")

	if c := in.Contract; c != nil && c.Greeks != nil {
		b.WriteString("### Greeks\n\n")
		b.WriteString("| Greek | Value | What It Means |\n")
		b.WriteString("|-------|-------|---------------|\n")
		for _, row := range GreekRows(*c.Greeks, c.GreeksSource) {
			fmt.Fprintf(b, "| %s | %s | %s |\n", row.Name, row.Value, row.Meaning)
		}
		b.WriteString("\n")
	}

	if len(in.Signals) == 0 {
		return
	}
	b.WriteString("### Indicators\n\n")
	for _, category := range GroupIndicators(in.Signals) {
		parts := make([]string, 0, len(category.Readings))
		for _, r := range category.Readings {
			parts = append(parts, fmt.Sprintf("%s %.1f (%s)", r.Name, r.Value, r.Meaning))
		}
		fmt.Fprintf(b, "**%s**: %s\n\n", category.Name, strings.Join(parts, ", "))
	}
	for _, conflict := range Conflicts(in.Signals) {
		fmt.Fprintf(b, "> **Warning**: %s\n\n", conflict)
	}
}

func writeStrategy(b *strings.Builder, t models.TradeThesis) {
	b.WriteString("## Strategy Summary\n\n")
	fmt.Fprintf(b, "- **Direction**: %s\n", strings.ToUpper(string(t.Direction)))
	fmt.Fprintf(b, "- **Conviction**: %s\n", formatPercent(t.Conviction))
	fmt.Fprintf(b, "- **Recommended Action**: %s\n\n", t.RecommendedAction)
}

func writeDebate(b *strings.Builder, t models.TradeThesis) {
	b.WriteString("## Debate Summary\n\n")
	fmt.Fprintf(b, "### Bull Case\n\n%s\n\n", t.BullSummary)
	fmt.Fprintf(b, "### Bear Case\n\n%s\n\n", t.BearSummary)
	fmt.Fprintf(b, "**Verdict**: %s (conviction: %s)\n\n", strings.ToUpper(string(t.Direction)), formatPercent(t.Conviction))
}

func writeKeyFactors(b *strings.Builder, t models.TradeThesis) {
	fmt.Fprintf(b, "## Key Factors\n\n%s\n\n", t.EntryRationale)
}

func writeRisks(b *strings.Builder, t models.TradeThesis) {
	b.WriteString("## Risk Assessment\n\n")
	if len(t.RiskFactors) == 0 {
		b.WriteString("No specific risk factors identified.\n\n")
		return
	}
	for i, risk := range t.RiskFactors {
		fmt.Fprintf(b, "%d. %s\n", i+1, risk)
	}
	b.WriteString("\n")
}

func writeMetadata(b *strings.Builder, in Input) {
	mc, t := in.Context, in.Thesis
	b.WriteString("## Metadata\n\n```\n")
	fmt.Fprintf(b, "Ticker: %s | $%s | %s\n", mc.Ticker, formatPrice(mc.TargetStrike), mc.Sector)
	fmt.Fprintf(b, "Data Source: %s\n", DataSource)
	fmt.Fprintf(b, "Data Timestamp: %s\n", mc.DataTimestamp.UTC().Format(timestampLayout))
	fmt.Fprintf(b, "AI Model: %s\n", t.ModelUsed)
	fmt.Fprintf(b, "Total Tokens: %s\n", formatThousands(t.TotalTokens))
	fmt.Fprintf(b, "Analysis Duration: %.1fs\n", float64(t.DurationMs)/1000)
	b.WriteString("```\n\n")
}

func writeDisclaimer(b *strings.Builder) {
	fmt.Fprintf(b, "---\n\n> %s\n", models.Disclaimer)
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// formatThousands groups digits with commas.
func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	m "bc.analysis/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1)

	tickerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Align(lipgloss.Right).
			Padding(0, 1)
)

// WriteTables renders the three terminal tables of the report: posterior
// beta summaries, implied expected returns, and the convergence diagnostics.
// Diagnostics are printed for a human to read, nothing gates on them.
func WriteTables(w io.Writer, summary *m.SummaryStatistics) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Posterior beta summary (%d pooled draws)", summary.PooledDraws)))
	fmt.Fprintln(w, posteriorTable(summary))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Expected returns (vs %s, mean daily return %.6f)",
		summary.MarketTicker, summary.MarketMeanReturn)))
	fmt.Fprintln(w, expectedReturnTable(summary))

	fmt.Fprintln(w, titleStyle.Render("Convergence diagnostics (advisory)"))
	fmt.Fprintln(w, diagnosticsTable(summary))
}

func posteriorTable(summary *m.SummaryStatistics) string {
	t := newTable("Ticker", "Beta mean", "Beta std dev")
	for _, s := range summary.Summaries {
		t.Row(s.Ticker, fmt.Sprintf("%.4f", s.BetaMean), fmt.Sprintf("%.4f", s.BetaStdDev))
	}
	return t.String()
}

func expectedReturnTable(summary *m.SummaryStatistics) string {
	t := newTable("Ticker", "Daily", "Annualized")
	for _, s := range summary.Summaries {
		t.Row(s.Ticker, fmt.Sprintf("%.6f", s.DailyExpReturn), fmt.Sprintf("%.2f%%", s.AnnualExpReturn*100))
	}
	return t.String()
}

func diagnosticsTable(summary *m.SummaryStatistics) string {
	t := newTable("Ticker", "R-hat", "ESS", "ACF lag 1")
	for _, s := range summary.Summaries {
		t.Row(s.Ticker, fmt.Sprintf("%.4f", s.RHat), fmt.Sprintf("%.0f", s.ESS), fmt.Sprintf("%.4f", s.ACF1))
	}
	return t.String()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return tickerStyle
			default:
				return cellStyle
			}
		})
}

package models

// Annualization factors by observation frequency. Daily price data means
// expected returns scale by 252 trading days.
const (
	Daily     = 252
	Weekly    = 52
	Monthly   = 12
	Quarterly = 4
	Yearly    = 1
)

// TickerSummary is one stock's row in the terminal report.
type TickerSummary struct {
	Ticker     string
	BetaMean   float64
	BetaStdDev float64

	DailyExpReturn  float64
	AnnualExpReturn float64

	// convergence diagnostics, advisory only
	RHat float64
	ESS  float64
	ACF1 float64
}

// SummaryStatistics is the terminal output of the analysis: one row per
// stock in input order, plus the market context the expected returns were
// derived from.
type SummaryStatistics struct {
	MarketTicker     string
	MarketMeanReturn float64
	PooledDraws      int
	Summaries        []TickerSummary
}

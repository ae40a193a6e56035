package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	m "bc.analysis/models"
)

// Defaults reproduce the canonical report: one calendar year of daily
// adjusted closes for ten stocks against the market index.
const (
	DefaultPricesCSV    = "data/prices_2023.csv"
	DefaultOutputDir    = "out"
	DefaultMarketTicker = "SPX"
	DefaultDateFrom     = "2023-01-03"
	DefaultDateTo       = "2023-12-29"
)

var DefaultStockTickers = []string{
	"AAPL", "MSFT", "AMZN", "GOOG", "JPM",
	"JNJ", "XOM", "PG", "CAT", "DIS",
}

// Config is everything one run of the analysis needs. Environment variables
// override each field; with nothing set the run matches the shipped report.
type Config struct {
	PricesCSV    string
	OutputDir    string
	MarketTicker string
	StockTickers []string
	DateFrom     time.Time
	DateTo       time.Time

	Spec m.ModelSpec
}

// Load reads the environment into a Config, falling back to defaults and
// warning on values that do not parse rather than failing the run.
func Load() (*Config, error) {
	cfg := &Config{
		PricesCSV:    getString("PRICES_CSV", DefaultPricesCSV),
		OutputDir:    getString("OUTPUT_DIR", DefaultOutputDir),
		MarketTicker: getString("MARKET_TICKER", DefaultMarketTicker),
		StockTickers: getTickers("STOCK_TICKERS", DefaultStockTickers),
		Spec: m.ModelSpec{
			Chains: getInt("MCMC_CHAINS", m.DefaultChains),
			Draws:  getInt("MCMC_DRAWS", m.DefaultDraws),
			BurnIn: getInt("MCMC_BURN_IN", m.DefaultBurnIn),
			Seed:   uint64(getInt("MCMC_SEED", m.DefaultSeed)),
		},
	}

	var err error
	if cfg.DateFrom, err = getDate("DATE_FROM", DefaultDateFrom); err != nil {
		return nil, err
	}
	if cfg.DateTo, err = getDate("DATE_TO", DefaultDateTo); err != nil {
		return nil, err
	}

	if cfg.DateTo.Before(cfg.DateFrom) {
		return nil, fmt.Errorf("date range is inverted: %s to %s",
			cfg.DateFrom.Format(time.DateOnly), cfg.DateTo.Format(time.DateOnly))
	}

	if len(cfg.StockTickers) == 0 {
		return nil, fmt.Errorf("no stock tickers configured")
	}

	if err := cfg.Spec.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}

	return n
}

func getTickers(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	var tickers []string
	for _, part := range strings.Split(v, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tickers = append(tickers, t)
		}
	}

	return tickers
}

func getDate(key, fallback string) (time.Time, error) {
	v := getString(key, fallback)

	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing %s: %w", key, err)
	}

	return t, nil
}

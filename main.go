package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bc.analysis/config"
	"bc.analysis/core"
	"bc.analysis/dataset"
	"bc.analysis/models"
	"bc.analysis/report"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
}

// run is the whole pipeline: load prices, derive returns, fit the model,
// summarize and render. Strictly sequential, each stage hands its output
// immutably to the next, any data error halts before the fit.
func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()

	log.Printf("Loading price table %s, %s to %s", cfg.PricesCSV,
		cfg.DateFrom.Format(time.DateOnly), cfg.DateTo.Format(time.DateOnly))
	tickers := append([]string{cfg.MarketTicker}, cfg.StockTickers...)
	prices, err := dataset.LoadPriceTable(cfg.PricesCSV, tickers, cfg.DateFrom, cfg.DateTo)
	if err != nil {
		return err
	}

	log.Printf("Deriving returns for %d assets over %d trading days (time: %v)",
		len(prices), len(prices[0].Prices), time.Since(start))
	market := prices[0].ToReturns()
	stocks := make([]*models.ReturnSeries, len(prices)-1)
	for i, ps := range prices[1:] {
		stocks[i] = ps.ToReturns()
	}

	data, err := models.NewReturnData(market, stocks)
	if err != nil {
		return err
	}

	log.Printf("Fitting hierarchical model (time: %v)", time.Since(start))
	log.Printf("Model:\n%s", cfg.Spec)
	chains, err := core.Fit(ctx, cfg.Spec, data)
	if err != nil {
		return err
	}

	log.Printf("Summarizing posterior (time: %v)", time.Since(start))
	summary := core.Summarize(chains, data)
	report.WriteTables(os.Stdout, summary)

	log.Printf("Rendering plots to %s (time: %v)", cfg.OutputDir, time.Since(start))
	allReturns := append([][]float64{data.Market}, data.Returns...)
	corr := core.GetCorrelationMatrix(core.GetCovarianceMatrix(allReturns))
	residuals := core.Residuals(data, summary)
	written, err := report.SavePlots(cfg.OutputDir, data, corr, chains, residuals)
	if err != nil {
		return err
	}

	log.Printf("Wrote %d plot files (time: %v)", len(written), time.Since(start))
	log.Printf("Analysis completed (time: %v)", time.Since(start))
	return nil
}

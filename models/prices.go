package models

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PriceSeries is one asset's daily adjusted closes over the analysis window.
// Treated as immutable once loaded.
type PriceSeries struct {
	Ticker string
	Dates  []time.Time
	Prices []float64
}

func NewPriceSeries(ticker string, dates []time.Time, prices []float64) (*PriceSeries, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("price series %s has %d dates but %d prices", ticker, len(dates), len(prices))
	}

	if len(prices) < 2 {
		return nil, fmt.Errorf("price series %s needs at least 2 observations to derive returns, got %d", ticker, len(prices))
	}

	for i, p := range prices {
		if p <= 0 {
			return nil, fmt.Errorf("price series %s has non-positive price %v on %s", ticker, p, dates[i].Format(time.DateOnly))
		}
	}

	return &PriceSeries{Ticker: ticker, Dates: dates, Prices: prices}, nil
}

// ToReturns derives the simple period over period returns, one element
// shorter than the prices: return[t] = price[t]/price[t-1] - 1. No smoothing,
// no gap filling.
func (ps *PriceSeries) ToReturns() *ReturnSeries {
	n := len(ps.Prices)

	returns := make([]float64, n-1)
	for t := 1; t < n; t++ {
		returns[t-1] = ps.Prices[t]/ps.Prices[t-1] - 1
	}

	return &ReturnSeries{
		Ticker:     ps.Ticker,
		Dates:      ps.Dates[1:], // first price has no predecessor
		Returns:    returns,
		MeanReturn: stat.Mean(returns, nil),
		StdDev:     stat.StdDev(returns, nil),
	}
}

type ReturnSeries struct {
	Ticker     string
	Dates      []time.Time
	Returns    []float64
	MeanReturn float64
	StdDev     float64
}

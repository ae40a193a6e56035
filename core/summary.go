package core

import (
	"gonum.org/v1/gonum/stat"

	m "bc.analysis/models"
)

// Summarize reduces the chains to the per stock report rows: posterior
// mean/sd of beta, the implied expected returns, and the convergence
// diagnostics. Diagnostics are advisory, nothing here gates on them.
func Summarize(chains []m.Chain, data *m.ReturnData) *m.SummaryStatistics {
	pooled := Pool(chains)
	marketMean := stat.Mean(data.Market, nil)

	summaries := make([]m.TickerSummary, data.S)
	for i, ticker := range data.Tickers {
		draws := make([]float64, len(pooled))
		for j, s := range pooled {
			draws[j] = s.Beta[i]
		}

		perChain := betaDrawsByChain(chains, i)

		betaMean := stat.Mean(draws, nil)
		daily := ExpectedDailyReturn(betaMean, marketMean)

		summaries[i] = m.TickerSummary{
			Ticker:          ticker,
			BetaMean:        betaMean,
			BetaStdDev:      stat.StdDev(draws, nil),
			DailyExpReturn:  daily,
			AnnualExpReturn: Annualize(daily, m.Daily),
			RHat:            GelmanRubin(perChain),
			ESS:             EffectiveSampleSize(perChain),
			ACF1:            meanLag1(perChain),
		}
	}

	return &m.SummaryStatistics{
		MarketTicker:     data.MarketTicker,
		MarketMeanReturn: marketMean,
		PooledDraws:      len(pooled),
		Summaries:        summaries,
	}
}

// ExpectedDailyReturn is the CAPM implied return with the risk free rate
// pinned at zero: beta times the average market return.
func ExpectedDailyReturn(betaMean, marketMean float64) float64 {
	return betaMean * marketMean
}

// Annualize scales a per period return by the number of periods in a year.
func Annualize(periodReturn float64, periodsPerYear int) float64 {
	return periodReturn * float64(periodsPerYear)
}

// Residuals evaluates each stock's regression residuals at its posterior
// mean beta: r[t,i] - betaMean_i*market[t]. Feeds the residual scatter
// plots.
func Residuals(data *m.ReturnData, summary *m.SummaryStatistics) [][]float64 {
	res := make([][]float64, data.S)
	for i := range data.S {
		betaMean := summary.Summaries[i].BetaMean
		res[i] = make([]float64, data.T)
		for t, r := range data.Returns[i] {
			res[i][t] = r - betaMean*data.Market[t]
		}
	}
	return res
}

// betaDrawsByChain splits stock i's beta draws back out per chain for the
// diagnostics, which need the chain structure the pooled view throws away.
func betaDrawsByChain(chains []m.Chain, i int) [][]float64 {
	res := make([][]float64, len(chains))
	for j, c := range chains {
		res[j] = make([]float64, len(c.Samples))
		for k, s := range c.Samples {
			res[j][k] = s.Beta[i]
		}
	}
	return res
}

func meanLag1(chains [][]float64) float64 {
	var sum float64
	for _, c := range chains {
		if len(c) < 2 {
			continue
		}
		sum += Autocorrelation(c, 1)[1]
	}
	return sum / float64(len(chains))
}

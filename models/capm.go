package models

import (
	"fmt"
	"strings"

	ex "bc.analysis/extensions"
)

// Prior constants of the hierarchical model. These are part of the model
// contract: changing them changes what the report estimates.
const (
	TauShape = 0.1   // residual precision tau[i] ~ Gamma(TauShape, TauRate)
	TauRate  = 0.001 // rate, not scale

	MuBetaPriorMean      = 1.0  // hyper mean of beta ~ Normal(mean, precision)
	MuBetaPriorPrecision = 1e-6 // all but flat

	TauBetaLower = 1.0 // hyper precision of beta ~ Uniform(lower, upper)
	TauBetaUpper = 100.0
)

// Fixed initialization, the same for every chain. Chains differ only through
// their seeded random streams.
const (
	InitBeta    = 1.0
	InitTau     = 1.0
	InitMuBeta  = 1.0
	InitTauBeta = 10.0
)

// Defaults reproduce the standard report: 3 chains x 5000 kept draws pooled
// into 15000 posterior samples.
const (
	DefaultChains = 3
	DefaultDraws  = 5000
	DefaultBurnIn = 1000
	DefaultSeed   = 42
)

// ModelSpec pins down one sampler run. The priors and initial values above
// are compiled in; only the run shape varies.
type ModelSpec struct {
	Chains int
	Draws  int // kept draws per chain, after burn in
	BurnIn int
	Seed   uint64
}

func DefaultModelSpec() ModelSpec {
	return ModelSpec{
		Chains: DefaultChains,
		Draws:  DefaultDraws,
		BurnIn: DefaultBurnIn,
		Seed:   DefaultSeed,
	}
}

func (spec ModelSpec) Validate() error {
	if spec.Chains < 1 {
		return fmt.Errorf("model spec needs at least 1 chain, got %d", spec.Chains)
	}

	if spec.Draws < 1 {
		return fmt.Errorf("model spec needs at least 1 kept draw per chain, got %d", spec.Draws)
	}

	if spec.BurnIn < 0 {
		return fmt.Errorf("model spec burn in cannot be negative, got %d", spec.BurnIn)
	}

	return nil
}

// String renders the distributional statements of the model. Logged ahead of
// the fit so the report records exactly what was estimated.
func (spec ModelSpec) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "\t r[t,i]   ~ Normal(beta[i]*market[t], 1/tau[i])\n")
	fmt.Fprintf(&b, "\t beta[i]  ~ Normal(mu.beta, 1/tau.beta)\n")
	fmt.Fprintf(&b, "\t tau[i]   ~ Gamma(%g, %g)\n", TauShape, TauRate)
	fmt.Fprintf(&b, "\t mu.beta  ~ Normal(%g, precision %g)\n", MuBetaPriorMean, MuBetaPriorPrecision)
	fmt.Fprintf(&b, "\t tau.beta ~ Uniform(%g, %g)\n", TauBetaLower, TauBetaUpper)
	fmt.Fprintf(&b, "\t %d chains x %d draws after %d burn in, seed %d", spec.Chains, spec.Draws, spec.BurnIn, spec.Seed)

	return b.String()
}

// ReturnData is the sampler input: the stock return matrix with its aligned
// market return vector. Column i of the matrix is Returns[i], the full
// return series of Tickers[i].
type ReturnData struct {
	MarketTicker string
	Tickers      []string
	Returns      [][]float64 // indexed [stock][time]
	Market       []float64   // length T
	T            int         // observations per series
	S            int         // stocks
}

func NewReturnData(market *ReturnSeries, stocks []*ReturnSeries) (*ReturnData, error) {
	if len(stocks) == 0 {
		return nil, fmt.Errorf("return data needs at least one stock series")
	}

	lengths := make([]int, 0, len(stocks)+1)
	lengths = append(lengths, len(market.Returns))
	for _, s := range stocks {
		lengths = append(lengths, len(s.Returns))
	}

	if !ex.AreAllEqual(lengths) {
		return nil, fmt.Errorf("return series are not aligned, lengths %v", lengths)
	}

	if lengths[0] < 1 {
		return nil, fmt.Errorf("return series are empty")
	}

	data := &ReturnData{
		MarketTicker: market.Ticker,
		Tickers:      make([]string, len(stocks)),
		Returns:      make([][]float64, len(stocks)),
		Market:       market.Returns,
		T:            lengths[0],
		S:            len(stocks),
	}

	for i, s := range stocks {
		data.Tickers[i] = s.Ticker
		data.Returns[i] = s.Returns
	}

	return data, nil
}

// PosteriorSample is one joint draw of every model parameter. Beta is the
// monitored parameter, the auxiliaries ride along for the diagnostics.
type PosteriorSample struct {
	Beta    []float64
	Tau     []float64
	MuBeta  float64
	TauBeta float64
}

// Chain holds one sampler chain's kept draws in iteration order, burn in
// already removed.
type Chain struct {
	ID      int
	Samples []PosteriorSample
}

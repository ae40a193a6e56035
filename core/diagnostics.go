package core

import (
	"math"

	"gonum.org/v1/gonum/stat"

	ex "bc.analysis/extensions"
)

// acfMaxLag caps how deep the autocorrelation sums go. The conjugate sweeps
// here decorrelate within a handful of lags, so anything beyond this is
// noise accumulation.
const acfMaxLag = 500

// GelmanRubin computes the potential scale reduction factor for one
// parameter from that parameter's draws per chain: the between/within chain
// variance ratio, near 1 when the chains sample the same distribution.
// Needs at least two chains of at least two draws, otherwise NaN.
func GelmanRubin(chains [][]float64) float64 {
	nChains := len(chains)
	if nChains < 2 || len(chains[0]) < 2 {
		return math.NaN()
	}
	n := float64(len(chains[0]))

	means := make([]float64, nChains)
	variances := make([]float64, nChains)
	for j, chain := range chains {
		means[j] = stat.Mean(chain, nil)
		variances[j] = stat.Variance(chain, nil)
	}

	w := stat.Mean(variances, nil)
	b := n * stat.Variance(means, nil)

	if w == 0 {
		return 1 // every chain is constant, nothing to diverge
	}

	return math.Sqrt(((n-1)/n*w + b/n) / w)
}

// Autocorrelation returns the chain's autocorrelation at lags 0..maxLag.
// Lag 0 is 1 by construction.
func Autocorrelation(chain []float64, maxLag int) []float64 {
	n := len(chain)
	maxLag = ex.Min(maxLag, n-1)
	mean := stat.Mean(chain, nil)

	var denom float64
	for _, v := range chain {
		d := v - mean
		denom += d * d
	}

	acf := make([]float64, maxLag+1)
	acf[0] = 1
	if denom == 0 {
		return acf // constant chain
	}

	for k := 1; k <= maxLag; k++ {
		var num float64
		for t := 0; t+k < n; t++ {
			num += (chain[t] - mean) * (chain[t+k] - mean)
		}
		acf[k] = num / denom
	}

	return acf
}

// EffectiveSampleSize estimates how many independent draws the
// autocorrelated chains are worth: m*n / (1 + 2*sum of acf). Per chain ACFs
// are averaged so between chain mean differences don't masquerade as
// autocorrelation, and the sum runs over Geyer's initial positive sequence,
// adding consecutive lag pairs until a pair goes non positive.
func EffectiveSampleSize(chains [][]float64) float64 {
	nChains := len(chains)
	if nChains == 0 || len(chains[0]) == 0 {
		return 0
	}
	n := len(chains[0])
	maxLag := ex.Min(n-1, acfMaxLag)

	acf := make([]float64, maxLag+1)
	for _, chain := range chains {
		chainACF := Autocorrelation(chain, maxLag)
		for k := range acf {
			acf[k] += chainACF[k] / float64(nChains)
		}
	}

	var sum float64
	for k := 1; k+1 <= maxLag; k += 2 {
		pair := acf[k] + acf[k+1]
		if pair <= 0 {
			break
		}
		sum += pair
	}

	total := float64(nChains * n)
	ess := total / (1 + 2*sum)
	if ess > total {
		ess = total // anticorrelation can push the naive estimate past the draw count
	}

	return ess
}

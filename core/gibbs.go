package core

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	ex "bc.analysis/extensions"
	m "bc.analysis/models"
)

const bisectionSteps = 64 // enough to pin the truncated gamma draw to float precision

// fitResources carries the sufficient statistics every conditional reuses.
// Computed once, read only across chains.
type fitResources struct {
	data     *m.ReturnData
	mktSumSq float64   // sum over t of market[t]^2
	mktDotR  []float64 // per stock, sum over t of market[t]*r[t,i]
}

func newFitResources(data *m.ReturnData) (*fitResources, error) {
	mktSumSq, err := ex.DotProduct(data.Market, data.Market)
	if err != nil {
		return nil, fmt.Errorf("error computing market moments: %w", err)
	}

	fr := &fitResources{
		data:     data,
		mktSumSq: mktSumSq,
		mktDotR:  make([]float64, data.S),
	}

	for i, returns := range data.Returns {
		d, err := ex.DotProduct(data.Market, returns)
		if err != nil {
			return nil, fmt.Errorf("error computing market moments for %s: %w", data.Tickers[i], err)
		}
		fr.mktDotR[i] = d
	}

	return fr, nil
}

// chainState is one chain's current parameter values plus its private random
// stream. Chains never share state, which keeps them independent and the
// whole fit reproducible from the seed.
type chainState struct {
	src     *rand.PCG
	normal  distuv.Normal
	uniform *rand.Rand

	beta    []float64
	tau     []float64
	muBeta  float64
	tauBeta float64
}

// newChainState applies the fixed initialization and seeds the chain's
// stream from (seed, chain id), so reruns reproduce each chain exactly.
func newChainState(spec m.ModelSpec, s int, chainID int) *chainState {
	src := rand.NewPCG(spec.Seed, uint64(chainID))

	cs := &chainState{
		src:     src,
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform: rand.New(src),
		beta:    make([]float64, s),
		tau:     make([]float64, s),
		muBeta:  m.InitMuBeta,
		tauBeta: m.InitTauBeta,
	}

	for i := range s {
		cs.beta[i] = m.InitBeta
		cs.tau[i] = m.InitTau
	}

	return cs
}

// Fit runs the independent Gibbs chains over the return data and hands back
// their kept draws. This is the entire sampling engine: callers give it a
// spec and data and get posterior samples, nothing upstream knows how the
// draws are produced.
func Fit(ctx context.Context, spec m.ModelSpec, data *m.ReturnData) ([]m.Chain, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	fr, err := newFitResources(data)
	if err != nil {
		return nil, err
	}

	log.Println("Starting sampler:")
	log.Printf("\t Chains: %v", spec.Chains)
	log.Printf("\t Draws per chain: %v (after %v burn in)", spec.Draws, spec.BurnIn)
	log.Printf("\t Stocks: %v, observations: %v", data.S, data.T)

	// chains are independent, so each one gets its own goroutine with its
	// own seeded state; the derived context lets a cancelled run stop
	// mid-chain without tearing down the caller's context
	chains := make([]m.Chain, spec.Chains)
	g, gctx := errgroup.WithContext(ctx)

	for i := range spec.Chains {
		id := i + 1
		g.Go(func() error {
			chain, err := runChain(gctx, spec, fr, id)
			if err != nil {
				return err
			}
			chains[i] = chain
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return chains, nil
}

// Pool concatenates the chains' kept draws in chain order. The pooled
// collection is what the report summarizes.
func Pool(chains []m.Chain) []m.PosteriorSample {
	total := 0
	for _, c := range chains {
		total += len(c.Samples)
	}

	pooled := make([]m.PosteriorSample, 0, total)
	for _, c := range chains {
		pooled = append(pooled, c.Samples...)
	}

	return pooled
}

func runChain(ctx context.Context, spec m.ModelSpec, fr *fitResources, id int) (m.Chain, error) {
	cs := newChainState(spec, fr.data.S, id)

	total := spec.BurnIn + spec.Draws
	samples := make([]m.PosteriorSample, 0, spec.Draws)

	for iter := range total {
		select {
		case <-ctx.Done():
			return m.Chain{}, ctx.Err()
		default:
		}

		cs.step(fr)

		if iter >= spec.BurnIn {
			samples = append(samples, cs.snapshot())
		}
	}

	return m.Chain{ID: id, Samples: samples}, nil
}

// step advances the chain by one full sweep of the conjugate conditionals.
// Update order: betas, residual precisions, hyper mean, hyper precision.
func (cs *chainState) step(fr *fitResources) {
	data := fr.data

	for i := range data.S {
		mean, prec := betaConditional(cs.tau[i], cs.tauBeta, cs.muBeta, fr.mktSumSq, fr.mktDotR[i])
		cs.beta[i] = mean + cs.normal.Rand()/math.Sqrt(prec)
	}

	for i := range data.S {
		ssr := residualSumSquares(data.Returns[i], data.Market, cs.beta[i])
		shape, rate := tauConditional(data.T, ssr)
		cs.tau[i] = distuv.Gamma{Alpha: shape, Beta: rate, Src: cs.src}.Rand()
	}

	mean, prec := muBetaConditional(ex.Sum(cs.beta), data.S, cs.tauBeta)
	cs.muBeta = mean + cs.normal.Rand()/math.Sqrt(prec)

	var scatter float64
	for i := range data.S {
		d := cs.beta[i] - cs.muBeta
		scatter += d * d
	}
	shape, rate := tauBetaConditional(data.S, scatter)
	cs.tauBeta = cs.truncGamma(shape, rate)
}

func (cs *chainState) snapshot() m.PosteriorSample {
	return m.PosteriorSample{
		Beta:    slices.Clone(cs.beta),
		Tau:     slices.Clone(cs.tau),
		MuBeta:  cs.muBeta,
		TauBeta: cs.tauBeta,
	}
}

// betaConditional is the normal full conditional of one stock's beta: the
// likelihood contributes tau*sum(market^2) precision around the least
// squares fit, the hierarchy contributes tau.beta precision around mu.beta.
// With a variance-free market the likelihood term vanishes and the
// conditional collapses to the hierarchy exactly.
func betaConditional(tau, tauBeta, muBeta, mktSumSq, mktDotR float64) (mean, prec float64) {
	prec = tau*mktSumSq + tauBeta
	mean = (tau*mktDotR + tauBeta*muBeta) / prec
	return mean, prec
}

// tauConditional is the gamma full conditional of one stock's residual
// precision, shape and rate.
func tauConditional(t int, ssr float64) (shape, rate float64) {
	return m.TauShape + float64(t)/2, m.TauRate + ssr/2
}

// muBetaConditional pools the betas against the near flat prior.
func muBetaConditional(sumBeta float64, s int, tauBeta float64) (mean, prec float64) {
	prec = m.MuBetaPriorPrecision + float64(s)*tauBeta
	mean = (m.MuBetaPriorPrecision*m.MuBetaPriorMean + tauBeta*sumBeta) / prec
	return mean, prec
}

// tauBetaConditional is the gamma shape/rate the uniform-prior hyper
// precision follows inside its [TauBetaLower, TauBetaUpper] support.
func tauBetaConditional(s int, scatter float64) (shape, rate float64) {
	return float64(s)/2 + 1, scatter / 2
}

// truncGamma draws from Gamma(shape, rate) restricted to the uniform prior's
// support. distuv has no truncated gamma and no gamma quantile, so invert
// the CDF by bisection: exact to float precision for ~64 CDF evaluations.
func (cs *chainState) truncGamma(shape, rate float64) float64 {
	lo, hi := m.TauBetaLower, m.TauBetaUpper

	if rate <= 0 {
		// betas exactly equal to mu.beta, so the density reduces to
		// x^(shape-1) on the interval; invert that directly
		u := cs.uniform.Float64()
		plo, phi := math.Pow(lo, shape), math.Pow(hi, shape)
		return math.Pow(plo+u*(phi-plo), 1/shape)
	}

	gamma := distuv.Gamma{Alpha: shape, Beta: rate}
	cdfLo, cdfHi := gamma.CDF(lo), gamma.CDF(hi)

	if cdfHi-cdfLo <= 0 {
		// all mass sits outside the interval, take the nearer bound
		if shape/rate < lo {
			return lo
		}
		return hi
	}

	target := cdfLo + cs.uniform.Float64()*(cdfHi-cdfLo)
	for range bisectionSteps {
		mid := (lo + hi) / 2
		if gamma.CDF(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}

	return (lo + hi) / 2
}

func residualSumSquares(returns, market []float64, beta float64) float64 {
	var ssr float64
	for t, r := range returns {
		resid := r - beta*market[t]
		ssr += resid * resid
	}
	return ssr
}

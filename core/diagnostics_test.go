package core

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	ex "bc.analysis/extensions"
)

// generateIIDChains draws independent chains from the same normal, the
// best case every diagnostic should recognize as converged.
func generateIIDChains(t *testing.T, nChains, n int) [][]float64 {
	t.Helper()

	chains := make([][]float64, nChains)
	for c := range nChains {
		src := rand.NewPCG(42, uint64(c))
		normal := distuv.Normal{Mu: 1, Sigma: 0.1, Src: src}
		chains[c] = make([]float64, n)
		for i := range n {
			chains[c][i] = normal.Rand()
		}
	}
	return chains
}

// generateAR1Chains draws autocorrelated chains: x[t] = phi*x[t-1] + noise.
func generateAR1Chains(t *testing.T, nChains, n int, phi float64) [][]float64 {
	t.Helper()

	chains := make([][]float64, nChains)
	for c := range nChains {
		src := rand.NewPCG(42, uint64(c))
		normal := distuv.Normal{Mu: 0, Sigma: math.Sqrt(1 - phi*phi), Src: src}
		chains[c] = make([]float64, n)
		for i := 1; i < n; i++ {
			chains[c][i] = phi*chains[c][i-1] + normal.Rand()
		}
	}
	return chains
}

func TestGelmanRubinNearOneForIIDChains(t *testing.T) {
	rhat := GelmanRubin(generateIIDChains(t, 3, 5000))
	ex.AssertInDelta(t, "R-hat for iid chains", 1.0, rhat, 0.01)
}

func TestGelmanRubinDetectsDivergedChains(t *testing.T) {
	chains := generateIIDChains(t, 3, 1000)
	for i := range chains[0] {
		chains[0][i] += 5 // one chain stuck in a different region
	}

	if rhat := GelmanRubin(chains); rhat < 1.5 {
		t.Errorf("R-hat should flag a shifted chain, got %.4f", rhat)
	}
}

func TestGelmanRubinEdgeCases(t *testing.T) {
	if !math.IsNaN(GelmanRubin([][]float64{{1, 2, 3}})) {
		t.Error("a single chain has no between chain variance, expected NaN")
	}

	constant := [][]float64{{2, 2, 2}, {2, 2, 2}}
	ex.AssertAreEqual(t, "R-hat for constant chains", 1.0, GelmanRubin(constant))
}

func TestAutocorrelation(t *testing.T) {
	chain := generateIIDChains(t, 1, 10000)[0]
	acf := Autocorrelation(chain, 5)

	ex.AssertAreEqual(t, "acf length", 6, len(acf))
	ex.AssertAreEqual(t, "acf at lag 0", 1.0, acf[0])
	for k := 1; k <= 5; k++ {
		ex.AssertInDelta(t, "iid acf", 0.0, acf[k], 0.05)
	}

	ar := generateAR1Chains(t, 1, 20000, 0.9)[0]
	arACF := Autocorrelation(ar, 2)
	ex.AssertInDelta(t, "AR(1) acf at lag 1", 0.9, arACF[1], 0.05)
	ex.AssertInDelta(t, "AR(1) acf at lag 2", 0.81, arACF[2], 0.05)
}

func TestAutocorrelationConstantChain(t *testing.T) {
	acf := Autocorrelation([]float64{3, 3, 3, 3}, 2)
	ex.AssertAreEqual(t, "lag 0", 1.0, acf[0])
	ex.AssertAreEqual(t, "lag 1", 0.0, acf[1])
	ex.AssertAreEqual(t, "lag 2", 0.0, acf[2])
}

func TestEffectiveSampleSize(t *testing.T) {
	nChains, n := 3, 5000
	total := float64(nChains * n)

	iid := EffectiveSampleSize(generateIIDChains(t, nChains, n))
	if iid < 0.8*total || iid > total {
		t.Errorf("iid ESS should be near %d, got %.0f", nChains*n, iid)
	}

	// an AR(1) chain with phi=0.9 is worth roughly (1-phi)/(1+phi) of its
	// draws, about 5 percent
	ar := EffectiveSampleSize(generateAR1Chains(t, nChains, n, 0.9))
	if ar > 0.2*total {
		t.Errorf("autocorrelated ESS should collapse well below %d, got %.0f", nChains*n, ar)
	}
	if ar < 0.005*total {
		t.Errorf("autocorrelated ESS collapsed implausibly far, got %.0f", ar)
	}

	ex.AssertAreEqual(t, "empty ESS", 0.0, EffectiveSampleSize(nil))
}

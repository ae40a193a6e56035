package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	m "bc.analysis/models"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// SavePlots renders every diagnostic image of the report into dir: the
// correlation heat map of all return series, one trace plot per stock, and
// one residual scatter per stock. Returns the written file paths.
func SavePlots(dir string, data *m.ReturnData, corr *mat.SymDense, chains []m.Chain, residuals [][]float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output dir: %w", err)
	}

	labels := append([]string{data.MarketTicker}, data.Tickers...)

	var written []string
	path := filepath.Join(dir, "correlation.png")
	if err := saveCorrelationHeatMap(path, labels, corr); err != nil {
		return written, err
	}
	written = append(written, path)

	for i, ticker := range data.Tickers {
		path := filepath.Join(dir, fmt.Sprintf("trace_%s.png", ticker))
		if err := saveTracePlot(path, ticker, chains, i); err != nil {
			return written, err
		}
		written = append(written, path)

		path = filepath.Join(dir, fmt.Sprintf("residuals_%s.png", ticker))
		if err := saveResidualScatter(path, ticker, data.Market, residuals[i]); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

// corrGrid adapts a symmetric correlation matrix to the heat map's grid
// interface, one cell per asset pair.
type corrGrid struct {
	matrix *mat.SymDense
}

func (g corrGrid) Dims() (c, r int) {
	n := g.matrix.SymmetricDim()
	return n, n
}

func (g corrGrid) Z(c, r int) float64 { return g.matrix.At(r, c) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

func saveCorrelationHeatMap(path string, labels []string, corr *mat.SymDense) error {
	colorMap := moreland.SmoothBlueRed()
	colorMap.SetMin(-1)
	colorMap.SetMax(1)

	heatMap := plotter.NewHeatMap(corrGrid{matrix: corr}, colorMap.Palette(255))
	heatMap.Min, heatMap.Max = -1, 1 // full correlation scale, not data driven

	p := plot.New()
	p.Title.Text = "Return correlation"
	p.NominalX(labels...)
	p.NominalY(labels...)
	p.Add(heatMap)

	if err := p.Save(plotWidth, plotWidth, path); err != nil {
		return fmt.Errorf("error saving correlation heat map: %w", err)
	}

	return nil
}

func saveTracePlot(path, ticker string, chains []m.Chain, stock int) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trace of beta[%s]", ticker)
	p.X.Label.Text = "kept iteration"
	p.Y.Label.Text = "beta"

	for c, chain := range chains {
		xys := make(plotter.XYs, len(chain.Samples))
		for iter, s := range chain.Samples {
			xys[iter].X = float64(iter)
			xys[iter].Y = s.Beta[stock]
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("error building trace line for %s: %w", ticker, err)
		}
		line.Color = plotutil.Color(c)

		p.Add(line)
		p.Legend.Add(fmt.Sprintf("chain %d", chain.ID), line)
	}

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("error saving trace plot for %s: %w", ticker, err)
	}

	return nil
}

func saveResidualScatter(path, ticker string, market, residuals []float64) error {
	xys := make(plotter.XYs, len(residuals))
	for t, r := range residuals {
		xys[t].X = market[t]
		xys[t].Y = r
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("error building residual scatter for %s: %w", ticker, err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = plotutil.Color(0)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = plotutil.Color(1)
	zero.Dashes = plotutil.Dashes(1)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Residuals of %s at posterior mean beta", ticker)
	p.X.Label.Text = "market return"
	p.Y.Label.Text = "residual"
	p.Add(scatter, zero)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("error saving residual scatter for %s: %w", ticker, err)
	}

	return nil
}

package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"findash/internal/montecarlo"
)

// DefaultBins is the number of histogram bars
const DefaultBins = 50

var (
	pathColor  = drawing.ColorFromHex("1f77b4").WithAlpha(40)
	startColor = drawing.ColorFromHex("d62728")
	barColor   = drawing.ColorFromHex("4c72b0")
	tailColor  = drawing.ColorFromHex("d62728")
)

// RenderPaths draws every simulated path as a PNG, starting at step 0 from
// the last price, with a dashed line at the last price. scale multiplies
// prices for display (1000 turns VCI quotes into VND).
func RenderPaths(w io.Writer, result *montecarlo.Result, scale float64) error {
	if result == nil || result.Matrix == nil {
		return errors.New("no simulation matrix to draw")
	}
	if scale <= 0 {
		scale = 1
	}

	m := result.Matrix
	xs := make([]float64, m.Steps+1)
	for t := range xs {
		xs[t] = float64(t)
	}

	p0 := result.LastPrice * scale
	lo, hi := p0, p0
	series := make([]gochart.Series, 0, m.Paths+1)
	for j := 0; j < m.Paths; j++ {
		ys := make([]float64, 0, m.Steps+1)
		ys = append(ys, p0)
		for _, v := range m.Path(j) {
			ys = append(ys, v*scale)
		}
		lo = math.Min(lo, floats.Min(ys))
		hi = math.Max(hi, floats.Max(ys))

		series = append(series, gochart.ContinuousSeries{
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: pathColor,
				StrokeWidth: 1,
			},
		})
	}
	series = append(series, gochart.ContinuousSeries{
		Name:    "last price",
		XValues: []float64{0, float64(m.Steps)},
		YValues: []float64{p0, p0},
		Style: gochart.Style{
			StrokeColor:     startColor,
			StrokeWidth:     2,
			StrokeDashArray: []float64{6, 4},
		},
	})

	graph := gochart.Chart{
		Title:  fmt.Sprintf("%s: %d simulated paths over %d days", result.Symbol, m.Paths, m.Steps),
		Width:  1200,
		Height: 600,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Name:  "day",
			Range: &gochart.ContinuousRange{Min: 0, Max: float64(m.Steps)},
		},
		YAxis: gochart.YAxis{
			Name:           "price",
			Range:          paddedRange(lo, hi),
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	return graph.Render(gochart.PNG, w)
}

// RenderHistogram draws the ending-price distribution as a PNG bar chart
// with the bar containing tail (the P5 price) highlighted.
func RenderHistogram(w io.Writer, symbol string, ending []float64, tail float64, bins int, scale float64) error {
	if len(ending) == 0 {
		return montecarlo.ErrEmptyDistribution
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	if scale <= 0 {
		scale = 1
	}

	hist := Histogram(ending, bins)
	bars := make([]gochart.Value, len(hist.Counts))
	maxCount := 0.0
	for i, count := range hist.Counts {
		lo, hi := hist.Edges[i], hist.Edges[i+1]
		style := gochart.Style{FillColor: barColor, StrokeColor: barColor}
		if tail >= lo && (tail < hi || i == len(hist.Counts)-1) {
			style = gochart.Style{FillColor: tailColor, StrokeColor: tailColor}
		}
		label := ""
		if i%10 == 0 || i == len(hist.Counts)-1 {
			label = priceFormatter((lo + hi) / 2 * scale)
		}
		bars[i] = gochart.Value{Value: count, Label: label, Style: style}
		maxCount = math.Max(maxCount, count)
	}

	const barWidth, barSpacing = 16, 4
	graph := gochart.BarChart{
		Title:      fmt.Sprintf("%s: ending price distribution (P5 %s)", symbol, priceFormatter(tail*scale)),
		Width:      len(bars)*(barWidth+barSpacing) + 160,
		Height:     500,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50},
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: maxCount * 1.1},
		},
		Bars: bars,
	}
	return graph.Render(gochart.PNG, w)
}

// Hist holds bin edges (len(Counts)+1) and per-bin counts
type Hist struct {
	Edges  []float64
	Counts []float64
}

// Histogram bins values into equal-width bins spanning [min, max].
// When every value is equal a single bin holds them all.
func Histogram(values []float64, bins int) Hist {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi || bins < 1 {
		return Hist{Edges: []float64{lo, hi}, Counts: []float64{float64(len(sorted))}}
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	// stat.Histogram excludes the last divider
	edges[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, edges, sorted, nil)
	return Hist{Edges: edges, Counts: counts}
}

func paddedRange(lo, hi float64) *gochart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 1)
	}
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func priceFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	if math.Abs(f) >= 1000 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.2f", f)
}

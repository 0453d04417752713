package chart

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/montecarlo"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func simulate(t *testing.T, sigma float64) *montecarlo.Result {
	t.Helper()
	m, err := montecarlo.GeneratePaths(context.Background(), 95.4, sigma, 20, 30, montecarlo.GenerateOptions{Seed: 5})
	require.NoError(t, err)
	risk, err := montecarlo.SummarizeRisk(m.Ending(), 95.4)
	require.NoError(t, err)
	return &montecarlo.Result{Symbol: "FPT", LastPrice: 95.4, Horizon: 20, Paths: 30, Risk: risk, Matrix: m}
}

func TestRenderPaths(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPaths(&buf, simulate(t, 0.02), 1000))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderPaths_FlatPaths(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPaths(&buf, simulate(t, 0), 1))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderPaths_NoMatrix(t *testing.T) {
	assert.Error(t, RenderPaths(&bytes.Buffer{}, &montecarlo.Result{}, 1))
}

func TestRenderHistogram(t *testing.T) {
	result := simulate(t, 0.02)

	var buf bytes.Buffer
	require.NoError(t, RenderHistogram(&buf, "FPT", result.Matrix.Ending(), result.Risk.TailPrice, 0, 1000))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.ErrorIs(t, RenderHistogram(&buf, "FPT", nil, 0, 10, 1), montecarlo.ErrEmptyDistribution)
}

func TestHistogram(t *testing.T) {
	h := Histogram([]float64{1, 2, 2, 3, 4, 5}, 4)
	require.Len(t, h.Edges, 5)
	assert.Equal(t, []float64{1, 2, 1, 2}, h.Counts)
	assert.Equal(t, 1.0, h.Edges[0])

	total := 0.0
	for _, c := range h.Counts {
		total += c
	}
	assert.Equal(t, 6.0, total)
}

func TestHistogram_SingleValue(t *testing.T) {
	h := Histogram([]float64{7, 7, 7}, 50)
	assert.Equal(t, []float64{3}, h.Counts)
	assert.Equal(t, []float64{7, 7}, h.Edges)
}

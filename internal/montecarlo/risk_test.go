package montecarlo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}

	cases := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{5, 1.2},
		{25, 2},
		{50, 3},
		{90, 4.6},
		{100, 5},
	}
	for _, c := range cases {
		got, err := Percentile(values, c.q)
		require.NoError(t, err)
		assert.InDelta(t, c.want, got, 1e-12, "q=%v", c.q)
	}

	// input must stay untouched
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, values)
}

func TestPercentile_Errors(t *testing.T) {
	_, err := Percentile(nil, 5)
	assert.ErrorIs(t, err, ErrEmptyDistribution)

	_, err = Percentile([]float64{1, 2}, 101)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	single, err := Percentile([]float64{7}, 5)
	require.NoError(t, err)
	assert.Equal(t, 7.0, single)
}

func TestSummarizeRisk_VaRIsStartMinusP5(t *testing.T) {
	ending := []float64{90, 95, 100, 105, 110, 115, 120, 125, 130, 135, 140}
	risk, err := SummarizeRisk(ending, 100)
	require.NoError(t, err)

	p5, err := Percentile(ending, 5)
	require.NoError(t, err)
	assert.Equal(t, p5, risk.TailPrice)
	assert.Equal(t, 100-p5, risk.VaR)
	assert.Equal(t, 0.95, risk.Confidence)
	assert.Equal(t, 90.0, risk.Min)
	assert.Equal(t, 140.0, risk.Max)
	assert.Equal(t, 115.0, risk.Median)
}

func TestSummarizeRisk_NegativeVaRWhenAllAboveStart(t *testing.T) {
	risk, err := SummarizeRisk([]float64{101, 102, 103, 104}, 100)
	require.NoError(t, err)
	assert.Less(t, risk.VaR, 0.0, "negative VaR must not be clamped")
}

func TestSummarizeRisk_PositiveVaRWhenAllBelowStart(t *testing.T) {
	risk, err := SummarizeRisk([]float64{91, 92, 93, 94}, 100)
	require.NoError(t, err)
	assert.Greater(t, risk.VaR, 0.0)
	assert.Greater(t, risk.ExpectedShortfall, 0.0)
}

func TestSummarizeRisk_Errors(t *testing.T) {
	_, err := SummarizeRisk(nil, 100)
	assert.ErrorIs(t, err, ErrEmptyDistribution)

	_, err = SummarizeRisk([]float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = SummarizeRiskAt([]float64{1}, 1, 1.5)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSummarizeRisk_FlatScenario(t *testing.T) {
	m, err := GeneratePaths(context.Background(), 100, 0, 5, 3, GenerateOptions{Seed: 3})
	require.NoError(t, err)

	risk, err := SummarizeRisk(m.Ending(), 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, risk.TailPrice)
	assert.Equal(t, 0.0, risk.VaR)
}

func TestSummarizeRisk_OneStepNormalQuantile(t *testing.T) {
	m, err := GeneratePaths(context.Background(), 100, 0.02, 1, 10000, GenerateOptions{Seed: 20240501, Workers: 4})
	require.NoError(t, err)

	risk, err := SummarizeRisk(m.Ending(), 100)
	require.NoError(t, err)

	// 100 * (1 + z_0.05 * 0.02) with z_0.05 = -1.645
	assert.InDelta(t, 96.71, risk.TailPrice, 0.3)
	assert.InDelta(t, 3.29, risk.VaR, 0.3)
}

package montecarlo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturns(t *testing.T) {
	returns, err := Returns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)
}

func TestVolatility_ConstantSeriesIsZero(t *testing.T) {
	sigma, err := Volatility([]float64{42, 42, 42, 42, 42})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sigma)
}

func TestVolatility_PopulationStdDev(t *testing.T) {
	// returns: +10%, -10% -> mean 0, population std 0.1
	sigma, err := Volatility([]float64{100, 110, 99})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, sigma, 1e-12)

	// a single return has zero dispersion
	sigma, err = Volatility([]float64{100, 103})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sigma)
}

func TestVolatility_NonNegative(t *testing.T) {
	prices := []float64{21.3, 21.9, 20.8, 22.4, 22.1, 23.7, 23.0, 21.2}
	sigma, err := Volatility(prices)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sigma, 0.0)
	assert.False(t, math.IsNaN(sigma))
}

func TestVolatility_InsufficientHistory(t *testing.T) {
	for _, prices := range [][]float64{nil, {}, {100}} {
		_, err := Volatility(prices)
		assert.ErrorIs(t, err, ErrInsufficientHistory)
	}
}

func TestReturns_RejectsNonPositivePrice(t *testing.T) {
	_, err := Returns([]float64{100, 0, 101})
	require.ErrorIs(t, err, ErrInvalidParameter)

	var pe *ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "price[1]", pe.Field)

	_, err = Returns([]float64{100, math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

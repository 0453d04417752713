package montecarlo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinObservations is the shortest price history a return can be computed from
const MinObservations = 2

// Returns computes simple percentage returns for each consecutive pair of prices.
// The result is one element shorter than prices.
func Returns(prices []float64) ([]float64, error) {
	if len(prices) < MinObservations {
		return nil, fmt.Errorf("%w: need at least %d observations, got %d",
			ErrInsufficientHistory, MinObservations, len(prices))
	}

	for i, p := range prices {
		if !isPositive(p) {
			return nil, invalid(fmt.Sprintf("price[%d]", i), p, "must be a finite positive number")
		}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return returns, nil
}

// Volatility returns the population standard deviation (N denominator) of the
// simple returns of prices.
func Volatility(prices []float64) (float64, error) {
	returns, err := Returns(prices)
	if err != nil {
		return 0, err
	}

	variance := stat.PopVariance(returns, nil)
	if variance < 0 {
		// compensated summation can leave a tiny negative residue
		variance = 0
	}
	return math.Sqrt(variance), nil
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

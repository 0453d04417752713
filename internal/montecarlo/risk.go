package montecarlo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultConfidence is the VaR confidence level (95%)
const DefaultConfidence = 0.95

// Risk summarizes the ending-price distribution of a simulation
type Risk struct {
	Confidence float64 `json:"confidence"`
	LastPrice  float64 `json:"last_price"`
	// TailPrice is the (1-Confidence) percentile of ending prices, P5 at 95%.
	TailPrice float64 `json:"p5"`
	// VaR is LastPrice - TailPrice. Negative when even the tail ends above the start.
	VaR               float64 `json:"var"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
}

// Percentile returns the q-th percentile (0..100) of values using linear
// interpolation between order statistics. This is numpy.percentile's default
// ("linear") method: with x sorted ascending and h = (n-1)*q/100,
// the result is x[floor(h)] + (h-floor(h)) * (x[floor(h)+1] - x[floor(h)]).
// values is not modified.
func Percentile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyDistribution
	}
	if q < 0 || q > 100 || math.IsNaN(q) {
		return 0, invalid("percentile", q, "must be within [0, 100]")
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, q), nil
}

func percentileSorted(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// SummarizeRisk computes the 95% VaR of ending prices relative to p0
func SummarizeRisk(ending []float64, p0 float64) (Risk, error) {
	return SummarizeRiskAt(ending, p0, DefaultConfidence)
}

// SummarizeRiskAt computes VaR = p0 - P(1-confidence) over the ending prices.
// The result is never clamped: a negative VaR is a valid outcome.
func SummarizeRiskAt(ending []float64, p0, confidence float64) (Risk, error) {
	if len(ending) == 0 {
		return Risk{}, ErrEmptyDistribution
	}
	if !isPositive(p0) {
		return Risk{}, invalid("last price", p0, "must be a finite positive number")
	}
	if !(confidence > 0 && confidence < 1) {
		return Risk{}, invalid("confidence", confidence, "must be within (0, 1)")
	}

	sorted := make([]float64, len(ending))
	copy(sorted, ending)
	sort.Float64s(sorted)

	// round so that 0.95 maps to exactly 5, not 5.000000000000004
	tailPct := math.Round((1-confidence)*1e6) / 1e4
	tail := percentileSorted(sorted, tailPct)

	var lossSum float64
	var lossCount int
	for _, v := range sorted {
		if v > tail {
			break
		}
		lossSum += p0 - v
		lossCount++
	}
	if lossCount == 0 {
		return Risk{}, fmt.Errorf("no ending price at or below the %.2f percentile", tailPct)
	}

	return Risk{
		Confidence:        confidence,
		LastPrice:         p0,
		TailPrice:         tail,
		VaR:               p0 - tail,
		ExpectedShortfall: lossSum / float64(lossCount),
		Mean:              stat.Mean(sorted, nil),
		Median:            percentileSorted(sorted, 50),
		Min:               sorted[0],
		Max:               sorted[len(sorted)-1],
	}, nil
}

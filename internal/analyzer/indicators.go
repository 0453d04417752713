package analyzer

import (
	"errors"
	"fmt"
)

// ErrPeriod is returned for a moving-average period that is not positive
var ErrPeriod = errors.New("period must be positive")

// SMA calculates the rolling simple moving average of closes. The result has
// len(closes)-period+1 values; out[i] averages closes[i : i+period], so it lines
// up with closes[i+period-1]. Fewer closes than period yields an empty slice.
func SMA(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrPeriod, period)
	}
	if len(closes) < period {
		return []float64{}, nil
	}

	out := make([]float64, 0, len(closes)-period+1)
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out, nil
}

// Normalize rebases closes to growth relative to the first close (first value is 1).
// A non-positive first close cannot be rebased and returns nil.
func Normalize(closes []float64) []float64 {
	if len(closes) == 0 || !(closes[0] > 0) {
		return nil
	}
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = c / closes[0]
	}
	return out
}

// PeriodReturn returns the simple return from the first to the last close
func PeriodReturn(closes []float64) (float64, bool) {
	n := Normalize(closes)
	if len(n) == 0 {
		return 0, false
	}
	return n[len(n)-1] - 1, true
}

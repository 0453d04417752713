package montecarlo

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory is returned when fewer than MinObservations prices are supplied.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrInvalidParameter is returned for non-positive prices, horizons or path counts.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEmptyDistribution is returned when a percentile is requested over no values.
	ErrEmptyDistribution = errors.New("empty distribution")
)

// ParamError describes which input was rejected
type ParamError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

func invalid(field string, value any, reason string) error {
	return &ParamError{Field: field, Value: value, Reason: reason}
}

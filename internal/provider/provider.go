package provider

import (
	"context"
	"errors"
	"fmt"

	"findash/pkg/model"
)

// ErrDataUnavailable is returned when no usable price data could be obtained
var ErrDataUnavailable = errors.New("price data unavailable")

// Provider defines the interface for market data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyCandles fetches daily OHLCV data covering the last days calendar days,
	// oldest first
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)

	// GetSymbols returns the constituents of an index group (e.g. VN30)
	GetSymbols(ctx context.Context, group string) ([]model.Stock, error)

	// IsAvailable reports whether the provider is configured and usable
	IsAvailable() bool

	// RateLimit returns the rate limit per minute (0 for none)
	RateLimit() int
}

// ProviderError represents a provider-specific error.
// It matches both ErrDataUnavailable and the underlying cause with errors.Is.
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrDataUnavailable, e.Err}
}

func newError(provider string, retryable bool, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Err: fmt.Errorf(format, args...), Retryable: retryable}
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a fallback chain of the available providers
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyCandles tries each provider in order until one succeeds
func (f *FallbackProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	return tryEach(ctx, f.providers, func(p Provider) ([]model.Candle, error) {
		return p.GetDailyCandles(ctx, symbol, days)
	})
}

// GetSymbols returns symbols from the first provider that can list them
func (f *FallbackProvider) GetSymbols(ctx context.Context, group string) ([]model.Stock, error) {
	return tryEach(ctx, f.providers, func(p Provider) ([]model.Stock, error) {
		return p.GetSymbols(ctx, group)
	})
}

func tryEach[T any](ctx context.Context, providers []Provider, call func(Provider) (T, error)) (T, error) {
	var zero T
	if len(providers) == 0 {
		return zero, newError("fallback", false, "no provider available")
	}

	var errs []error
	for _, p := range providers {
		data, err := call(p)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return zero, errors.Join(errs...)
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		maxRate = max(maxRate, p.RateLimit())
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

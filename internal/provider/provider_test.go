package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/cache"
	"findash/pkg/model"
)

type fakeProvider struct {
	name      string
	available bool
	candles   []model.Candle
	stocks    []model.Stock
	err       error
	calls     int32
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return f.available }
func (f *fakeProvider) RateLimit() int    { return 10 }

func (f *fakeProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeProvider) GetSymbols(ctx context.Context, group string) ([]model.Stock, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.stocks, nil
}

func sampleCandles() []model.Candle {
	day := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	return []model.Candle{
		{Time: day, Close: 120.5},
		{Time: day.AddDate(0, 0, 1), Close: 121},
	}
}

func TestProviderError_Is(t *testing.T) {
	cause := errors.New("connection reset")
	var err error = &ProviderError{Provider: "vci", Err: cause, Retryable: true}

	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "vci: connection reset", err.Error())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable)
}

func TestFallbackProvider_SkipsUnavailableAndFailing(t *testing.T) {
	down := &fakeProvider{name: "down", available: true, err: newError("down", true, "timeout")}
	off := &fakeProvider{name: "off", available: false, candles: sampleCandles()}
	up := &fakeProvider{name: "up", available: true, candles: sampleCandles()}

	f := NewFallbackProvider(off, down, up)
	require.Len(t, f.Providers(), 2)
	assert.True(t, f.IsAvailable())

	candles, err := f.GetDailyCandles(context.Background(), "FPT", 90)
	require.NoError(t, err)
	assert.Len(t, candles, 2)
	assert.Equal(t, int32(1), down.calls)
	assert.Equal(t, int32(0), off.calls)
}

func TestFallbackProvider_AllFail(t *testing.T) {
	a := &fakeProvider{name: "a", available: true, err: newError("a", false, "status 404")}
	b := &fakeProvider{name: "b", available: true, err: newError("b", true, "rate limited")}

	_, err := NewFallbackProvider(a, b).GetSymbols(context.Background(), "VN30")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFallbackProvider_Empty(t *testing.T) {
	f := NewFallbackProvider()
	assert.False(t, f.IsAvailable())

	_, err := f.GetDailyCandles(context.Background(), "FPT", 90)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestCachingProvider(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, candles: sampleCandles()}
	now := time.Date(2025, 5, 7, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := NewCachingProvider(inner, time.Minute, time.Hour, cache.WithClock(clock))
	assert.Equal(t, "inner", c.Name())

	for i := 0; i < 3; i++ {
		candles, err := c.GetDailyCandles(context.Background(), "FPT", 90)
		require.NoError(t, err)
		assert.Len(t, candles, 2)
	}
	assert.Equal(t, int32(1), inner.calls)

	// a different lookback is a different entry
	_, err := c.GetDailyCandles(context.Background(), "FPT", 30)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls)

	now = now.Add(2 * time.Minute)
	_, err = c.GetDailyCandles(context.Background(), "FPT", 90)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls)
}

func TestCachingProvider_ReturnsCopies(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, candles: sampleCandles()}
	c := NewCachingProvider(inner, time.Minute, time.Minute)

	first, err := c.GetDailyCandles(context.Background(), "FPT", 90)
	require.NoError(t, err)
	first[0].Close = -1

	second, err := c.GetDailyCandles(context.Background(), "FPT", 90)
	require.NoError(t, err)
	assert.Equal(t, 120.5, second[0].Close)
}

func TestCachingProvider_DoesNotCacheErrors(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, err: newError("inner", true, "timeout")}
	c := NewCachingProvider(inner, time.Minute, time.Minute)

	_, err := c.GetSymbols(context.Background(), "VN30")
	require.Error(t, err)

	inner.err = nil
	inner.stocks = []model.Stock{{Symbol: "ACB"}}
	stocks, err := c.GetSymbols(context.Background(), "VN30")
	require.NoError(t, err)
	assert.Equal(t, []model.Stock{{Symbol: "ACB"}}, stocks)
}

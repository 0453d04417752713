package provider

import (
	"context"
	"time"

	"findash/internal/cache"
	"findash/pkg/model"
)

type candleKey struct {
	symbol string
	days   int
}

// CachingProvider wraps a Provider with expiring in-memory caches.
// Concurrent requests for the same symbol and lookback share one upstream call.
type CachingProvider struct {
	inner   Provider
	candles *cache.TTLCache[candleKey, []model.Candle]
	symbols *cache.TTLCache[string, []model.Stock]
}

// NewCachingProvider creates a caching wrapper. historyTTL applies to candles,
// listingTTL to symbol lists.
func NewCachingProvider(inner Provider, historyTTL, listingTTL time.Duration, opts ...cache.Option) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		candles: cache.NewTTLCache[candleKey, []model.Candle](historyTTL, opts...),
		symbols: cache.NewTTLCache[string, []model.Stock](listingTTL, opts...),
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	candles, err := p.candles.GetOrCompute(ctx, candleKey{symbol: symbol, days: days}, func(ctx context.Context) ([]model.Candle, error) {
		return p.inner.GetDailyCandles(ctx, symbol, days)
	})
	if err != nil {
		return nil, err
	}
	// callers may sort or trim; never hand out the cached backing array
	return append([]model.Candle(nil), candles...), nil
}

func (p *CachingProvider) GetSymbols(ctx context.Context, group string) ([]model.Stock, error) {
	stocks, err := p.symbols.GetOrCompute(ctx, group, func(ctx context.Context) ([]model.Stock, error) {
		return p.inner.GetSymbols(ctx, group)
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Stock(nil), stocks...), nil
}

// RunJanitor purges expired entries every interval until ctx is done
func (p *CachingProvider) RunJanitor(ctx context.Context, interval time.Duration) {
	go p.symbols.RunJanitor(ctx, interval)
	p.candles.RunJanitor(ctx, interval)
}

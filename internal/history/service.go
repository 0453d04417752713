package history

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"findash/internal/provider"
	"findash/pkg/model"
)

// DefaultLookbackDays is the calendar-day window used for volatility estimation
const DefaultLookbackDays = 90

// Service turns provider candles into clean close-price series
type Service struct {
	provider provider.Provider
	log      logrus.FieldLogger
}

// NewService creates a history service over p
func NewService(p provider.Provider, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{provider: p, log: logger}
}

// Series returns the close history of symbol over the last lookbackDays
// calendar days, oldest first. Non-positive or non-finite closes and duplicate
// dates are dropped; gaps are kept. An empty result is ErrDataUnavailable.
func (s *Service) Series(ctx context.Context, symbol string, lookbackDays int) (model.PriceSeries, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	candles, err := s.provider.GetDailyCandles(ctx, symbol, lookbackDays)
	if err != nil {
		return model.PriceSeries{Symbol: symbol}, fmt.Errorf("fetching %s history: %w", symbol, err)
	}

	clean, dropped := cleanCandles(candles)
	if dropped > 0 {
		s.log.WithFields(logrus.Fields{
			"symbol":  symbol,
			"dropped": dropped,
		}).Debug("dropped unusable candles")
	}
	if len(clean) == 0 {
		return model.PriceSeries{Symbol: symbol}, fmt.Errorf("%s: %w: no usable closes in the last %d days",
			symbol, provider.ErrDataUnavailable, lookbackDays)
	}

	return model.SeriesFromCandles(symbol, clean), nil
}

// Candles returns the cleaned daily candles of symbol, oldest first
func (s *Service) Candles(ctx context.Context, symbol string, lookbackDays int) ([]model.Candle, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	candles, err := s.provider.GetDailyCandles(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetching %s history: %w", symbol, err)
	}
	clean, _ := cleanCandles(candles)
	if len(clean) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, provider.ErrDataUnavailable)
	}
	return clean, nil
}

func cleanCandles(candles []model.Candle) ([]model.Candle, int) {
	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	clean := sorted[:0]
	for _, c := range sorted {
		if !(c.Close > 0) || math.IsInf(c.Close, 0) {
			continue
		}
		// same day reported twice: keep the later row
		if n := len(clean); n > 0 && sameDay(clean[n-1], c) {
			clean[n-1] = c
			continue
		}
		clean = append(clean, c)
	}
	return clean, len(candles) - len(clean)
}

func sameDay(a, b model.Candle) bool {
	ay, am, ad := a.Time.Date()
	by, bm, bd := b.Time.Date()
	return ay == by && am == bm && ad == bd
}

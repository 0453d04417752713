package model

import "time"

// Candle represents a single daily candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Stock represents basic listing information
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"` // HOSE, HNX, NASDAQ...
}

// PricePoint is one (date, close) observation
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is a chronologically ascending close-price history for one symbol.
// Gaps (holidays, suspensions) are kept as-is, never filled.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of observations
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Closes returns the close prices in order
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the last observation. ok is false for an empty series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// SeriesFromCandles builds a PriceSeries from daily candles (assumed sorted)
func SeriesFromCandles(symbol string, candles []Candle) PriceSeries {
	points := make([]PricePoint, len(candles))
	for i, c := range candles {
		points[i] = PricePoint{Date: c.Time, Close: c.Close}
	}
	return PriceSeries{Symbol: symbol, Points: points}
}

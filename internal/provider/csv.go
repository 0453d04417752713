package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"findash/pkg/model"
)

const csvDateLayout = "2006-01-02"

// CSVProvider reads daily candles from <dir>/<SYMBOL>.csv files with the
// header date,open,high,low,close,volume. The lookback window ends at the
// newest row of the file, not at today, so archived data stays usable.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider over a directory of CSV files
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// Name returns the provider name
func (p *CSVProvider) Name() string {
	return "csv"
}

// IsAvailable reports whether the data directory exists
func (p *CSVProvider) IsAvailable() bool {
	if p.dir == "" {
		return false
	}
	info, err := os.Stat(p.dir)
	return err == nil && info.IsDir()
}

// RateLimit returns 0: local files are not rate limited
func (p *CSVProvider) RateLimit() int {
	return 0
}

// GetDailyCandles reads the symbol's file and keeps the last days calendar days
func (p *CSVProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if days <= 0 {
		return nil, newError(p.Name(), false, "invalid lookback %d days", days)
	}

	path := filepath.Join(p.dir, strings.ToUpper(symbol)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer f.Close()

	candles, err := readCandles(f)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %w", path, err)}
	}
	if len(candles) == 0 {
		return nil, newError(p.Name(), false, "%s has no rows", path)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	from := candles[len(candles)-1].Time.AddDate(0, 0, -days)
	start := sort.Search(len(candles), func(i int) bool {
		return !candles[i].Time.Before(from)
	})
	return candles[start:], nil
}

func readCandles(r io.Reader) ([]model.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var candles []model.Candle
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, err
		}

		t, err := time.Parse(csvDateLayout, record[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c := model.Candle{Time: t}
		if c.Close, err = strconv.ParseFloat(record[col["close"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		c.Open = optionalFloat(record, col, "open", c.Close)
		c.High = optionalFloat(record, col, "high", c.Close)
		c.Low = optionalFloat(record, col, "low", c.Close)
		if i, ok := col["volume"]; ok && i < len(record) {
			c.Volume, _ = strconv.ParseInt(record[i], 10, 64)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func optionalFloat(record []string, col map[string]int, name string, fallback float64) float64 {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return fallback
	}
	v, err := strconv.ParseFloat(record[i], 64)
	if err != nil {
		return fallback
	}
	return v
}

// GetSymbols lists the symbols that have a CSV file. The group is ignored.
func (p *CSVProvider) GetSymbols(ctx context.Context, group string) ([]model.Stock, error) {
	matches, err := filepath.Glob(filepath.Join(p.dir, "*.csv"))
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	if len(matches) == 0 {
		return nil, newError(p.Name(), false, "no csv files in %s", p.dir)
	}

	stocks := make([]model.Stock, 0, len(matches))
	for _, m := range matches {
		symbol := strings.ToUpper(strings.TrimSuffix(filepath.Base(m), filepath.Ext(m)))
		stocks = append(stocks, model.Stock{Symbol: symbol})
	}
	sort.Slice(stocks, func(i, j int) bool {
		return stocks[i].Symbol < stocks[j].Symbol
	})
	return stocks, nil
}

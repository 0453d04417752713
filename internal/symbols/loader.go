package symbols

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"findash/internal/provider"
	"findash/pkg/model"
)

// Loader handles loading stock symbols from the provider with a static fallback
type Loader struct {
	provider provider.Provider
	log      logrus.FieldLogger
}

// NewLoader creates a new symbol loader
func NewLoader(p provider.Provider, logger logrus.FieldLogger) *Loader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{provider: p, log: logger}
}

// LoadGroup loads the constituents of an index group (VN30 by default).
// When the provider fails or returns nothing usable, the built-in list for
// the group is returned and fromFallback is true.
func (l *Loader) LoadGroup(ctx context.Context, group string) (stocks []model.Stock, fromFallback bool, err error) {
	if group == "" {
		group = string(UniverseVN30)
	}

	listed, err := l.provider.GetSymbols(ctx, strings.ToUpper(group))
	if err == nil {
		stocks = filterValid(listed)
		if len(stocks) > 0 {
			return stocks, false, nil
		}
	}
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	fallback := GetUniverse(Universe(group))
	if len(fallback) == 0 {
		if err == nil {
			err = provider.ErrDataUnavailable
		}
		return nil, false, err
	}

	l.log.WithError(err).WithField("group", group).Warn("symbol listing unavailable, using built-in list")
	stocks, _ = l.LoadSymbols(fallback)
	return stocks, true, nil
}

// LoadSymbols normalizes user-supplied symbols, dropping blanks, invalid
// tickers and duplicates. The result is sorted.
func (l *Loader) LoadSymbols(symbols []string) ([]model.Stock, error) {
	seen := make(map[string]bool, len(symbols))
	stocks := make([]model.Stock, 0, len(symbols))
	for _, sym := range symbols {
		sym = Normalize(sym)
		if !isValidSymbol(sym) || seen[sym] {
			continue
		}
		seen[sym] = true
		stocks = append(stocks, model.Stock{Symbol: sym})
	}
	sort.Slice(stocks, func(i, j int) bool {
		return stocks[i].Symbol < stocks[j].Symbol
	})
	return stocks, nil
}

// Normalize upper-cases and trims a ticker
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsValid reports whether symbol looks like a ticker (letters and digits,
// optionally followed by a dotted exchange suffix)
func IsValid(symbol string) bool {
	return isValidSymbol(Normalize(symbol))
}

func filterValid(stocks []model.Stock) []model.Stock {
	filtered := make([]model.Stock, 0, len(stocks))
	for _, s := range stocks {
		if isValidSymbol(s.Symbol) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// isValidSymbol checks if a symbol is a standard ticker
func isValidSymbol(symbol string) bool {
	base, suffix, dotted := strings.Cut(symbol, ".")
	if len(base) == 0 || len(base) > 10 {
		return false
	}
	if dotted && (len(suffix) == 0 || len(suffix) > 4) {
		return false
	}
	for _, c := range base + suffix {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"findash/internal/ratelimit"
	"findash/pkg/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider implements the Provider interface for Yahoo Finance (unofficial API).
// Vietnamese tickers need the exchange suffix, e.g. FPT.VN.
type YahooProvider struct {
	httpSource
	baseURL   string
	suffix    string
	divisor   float64
	rateLimit int
	now       func() time.Time
}

// YahooOptions configures a YahooProvider
type YahooOptions struct {
	BaseURL   string
	Suffix    string  // appended to bare symbols, e.g. ".VN"
	Divisor   float64 // quotes are divided by it; 0 or 1 keeps them as-is
	RateLimit int
	Timeout   time.Duration
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider(opts YahooOptions) *YahooProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = yahooBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Divisor <= 0 {
		opts.Divisor = 1
	}
	return &YahooProvider{
		httpSource: httpSource{
			name:    "yahoo",
			client:  &http.Client{Timeout: opts.Timeout},
			limiter: ratelimit.NewLimiter("yahoo", opts.RateLimit),
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		suffix:    opts.Suffix,
		divisor:   opts.Divisor,
		rateLimit: opts.RateLimit,
		now:       time.Now,
	}
}

// Name returns the provider name
func (p *YahooProvider) Name() string {
	return p.name
}

// IsAvailable always returns true (no API key needed)
func (p *YahooProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *YahooProvider) RateLimit() int {
	return p.rateLimit
}

// yahooResponse represents the Yahoo Finance API response.
// Missing quotes come back as null and decode to 0.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *YahooProvider) ticker(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if p.suffix != "" && !strings.Contains(symbol, ".") {
		return symbol + p.suffix
	}
	return symbol
}

// GetDailyCandles fetches daily candles for the last days calendar days
func (p *YahooProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if days <= 0 {
		return nil, newError(p.name, false, "invalid lookback %d days", days)
	}

	end := p.now()
	start := end.AddDate(0, 0, -days)

	q := url.Values{}
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.Unix()))
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")

	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/"+url.PathEscape(p.ticker(symbol))+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var data yahooResponse
	if err := p.doJSON(ctx, req, &data); err != nil {
		return nil, err
	}

	if data.Chart.Error != nil {
		return nil, newError(p.name, false, "%s", data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Timestamp) == 0 ||
		len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, newError(p.name, false, "no data available for %s", symbol)
	}

	result := data.Chart.Result[0]
	quotes := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i := range result.Timestamp {
		if i >= len(quotes.Open) || i >= len(quotes.High) || i >= len(quotes.Low) || i >= len(quotes.Close) {
			continue
		}
		// null close: no trade that day
		if quotes.Close[i] <= 0 {
			continue
		}

		var volume int64
		if i < len(quotes.Volume) {
			volume = quotes.Volume[i]
		}

		candles = append(candles, model.Candle{
			Time:   time.Unix(result.Timestamp[i], 0),
			Open:   quotes.Open[i] / p.divisor,
			High:   quotes.High[i] / p.divisor,
			Low:    quotes.Low[i] / p.divisor,
			Close:  quotes.Close[i] / p.divisor,
			Volume: volume,
		})
	}
	if len(candles) == 0 {
		return nil, newError(p.name, false, "no data available for %s", symbol)
	}
	return candles, nil
}

// GetSymbols is not supported by Yahoo Finance unofficial API
func (p *YahooProvider) GetSymbols(ctx context.Context, group string) ([]model.Stock, error) {
	return nil, newError(p.name, false, "symbol listing not supported")
}

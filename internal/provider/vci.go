package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"findash/internal/ratelimit"
	"findash/pkg/model"
)

const vciBaseURL = "https://trading.vietcap.com.vn/api"

// VCIProvider fetches Vietnamese equities from the Vietcap trading API.
// Prices are quoted in thousands of VND.
type VCIProvider struct {
	httpSource
	baseURL   string
	rateLimit int
	now       func() time.Time
}

// VCIOptions configures a VCIProvider
type VCIOptions struct {
	BaseURL   string
	RateLimit int // requests per minute
	Timeout   time.Duration
}

// NewVCIProvider creates a new Vietcap provider
func NewVCIProvider(opts VCIOptions) *VCIProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = vciBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &VCIProvider{
		httpSource: httpSource{
			name:    "vci",
			client:  &http.Client{Timeout: opts.Timeout},
			limiter: ratelimit.NewLimiter("vci", opts.RateLimit),
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		rateLimit: opts.RateLimit,
		now:       time.Now,
	}
}

// Name returns the provider name
func (p *VCIProvider) Name() string {
	return p.name
}

// IsAvailable always returns true (no API key needed)
func (p *VCIProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *VCIProvider) RateLimit() int {
	return p.rateLimit
}

type vciChartRequest struct {
	TimeFrame string   `json:"timeFrame"`
	Symbols   []string `json:"symbols"`
	To        int64    `json:"to"`
	CountBack int      `json:"countBack"`
}

// vciTimestamps accepts timestamps sent either as numbers or as strings
type vciTimestamps []int64

func (ts *vciTimestamps) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]int64, len(raw))
	for i, r := range raw {
		s := strings.Trim(string(r), `"`)
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp %d: %w", i, err)
		}
		out[i] = v
	}
	*ts = out
	return nil
}

type vciChartResponse []struct {
	Symbol string        `json:"symbol"`
	T      vciTimestamps `json:"t"`
	O      []float64     `json:"o"`
	H      []float64     `json:"h"`
	L      []float64     `json:"l"`
	C      []float64     `json:"c"`
	V      []int64       `json:"v"`
}

// GetDailyCandles fetches daily candles for the last days calendar days
func (p *VCIProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if days <= 0 {
		return nil, newError(p.name, false, "invalid lookback %d days", days)
	}

	to := p.now()
	from := to.AddDate(0, 0, -days)

	body, err := json.Marshal(vciChartRequest{
		TimeFrame: "ONE_DAY",
		Symbols:   []string{strings.ToUpper(symbol)},
		To:        to.Unix(),
		// trading days are fewer than calendar days, so this over-fetches
		CountBack: days,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/chart/OHLCChart/gap-chart", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://trading.vietcap.com.vn/")

	var data vciChartResponse
	if err := p.doJSON(ctx, req, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data[0].T) == 0 {
		return nil, newError(p.name, false, "no data for %s", symbol)
	}

	series := data[0]
	candles := make([]model.Candle, 0, len(series.T))
	for i, ts := range series.T {
		if i >= len(series.O) || i >= len(series.H) || i >= len(series.L) || i >= len(series.C) {
			break
		}
		t := time.Unix(ts, 0)
		if t.Before(from) {
			continue
		}

		var volume int64
		if i < len(series.V) {
			volume = series.V[i]
		}
		candles = append(candles, model.Candle{
			Time:   t,
			Open:   series.O[i],
			High:   series.H[i],
			Low:    series.L[i],
			Close:  series.C[i],
			Volume: volume,
		})
	}
	if len(candles) == 0 {
		return nil, newError(p.name, false, "no data for %s in the last %d days", symbol, days)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
	return candles, nil
}

type vciSymbol struct {
	Symbol      string `json:"symbol"`
	Board       string `json:"board"`
	OrganName   string `json:"organName"`
	EnOrganName string `json:"enOrganName"`
}

// GetSymbols lists the constituents of an index group. An empty group means VN30.
func (p *VCIProvider) GetSymbols(ctx context.Context, group string) ([]model.Stock, error) {
	if group == "" {
		group = "VN30"
	}

	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/price/symbols/getByGroup?group="+strings.ToUpper(group), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Referer", "https://trading.vietcap.com.vn/")

	var data []vciSymbol
	if err := p.doJSON(ctx, req, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, newError(p.name, false, "group %s has no symbols", group)
	}

	stocks := make([]model.Stock, 0, len(data))
	for _, s := range data {
		name := s.EnOrganName
		if name == "" {
			name = s.OrganName
		}
		stocks = append(stocks, model.Stock{Symbol: s.Symbol, Name: name, Exchange: s.Board})
	}
	sort.Slice(stocks, func(i, j int) bool {
		return stocks[i].Symbol < stocks[j].Symbol
	})
	return stocks, nil
}

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewYahooProvider(YahooOptions{BaseURL: srv.URL, Suffix: ".VN", RateLimit: 600})
	p.now = func() time.Time { return testNow }
	return p
}

func TestYahooProvider_GetDailyCandles(t *testing.T) {
	p := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FPT.VN", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, fmt.Sprint(testNow.Unix()), r.URL.Query().Get("period2"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"FPT.VN","currency":"VND"},
			"timestamp":[1748217600,1748304000,1748390400],
			"indicators":{"quote":[{"open":[120000,null,121000],"high":[121000,null,122500],
			"low":[119000,null,120500],"close":[120500,null,122000],"volume":[1000,0,1200]}]}}],"error":null}}`)
	})

	candles, err := p.GetDailyCandles(context.Background(), "fpt", 30)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 120500.0, candles[0].Close)
	assert.Equal(t, 122000.0, candles[1].Close)
}

func TestYahooProvider_Divisor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1748217600],
			"indicators":{"quote":[{"open":[120000],"high":[121000],"low":[119000],"close":[120500],"volume":[1]}]}}]}}`)
	}))
	defer srv.Close()

	p := NewYahooProvider(YahooOptions{BaseURL: srv.URL, Divisor: 1000, RateLimit: 600})
	p.now = func() time.Time { return testNow }

	candles, err := p.GetDailyCandles(context.Background(), "FPT.VN", 30)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 120.5, candles[0].Close)
	assert.Equal(t, 119.0, candles[0].Low)
}

func TestYahooProvider_ChartError(t *testing.T) {
	p := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	})

	_, err := p.GetDailyCandles(context.Background(), "ZZZ", 30)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Contains(t, err.Error(), "delisted")
}

func TestYahooProvider_KeepsQualifiedTicker(t *testing.T) {
	p := NewYahooProvider(YahooOptions{Suffix: ".VN"})
	assert.Equal(t, "AAPL.US", p.ticker("aapl.us"))
	assert.Equal(t, "VCB.VN", p.ticker("vcb"))
}

func TestYahooProvider_GetSymbolsUnsupported(t *testing.T) {
	_, err := NewYahooProvider(YahooOptions{}).GetSymbols(context.Background(), "VN30")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

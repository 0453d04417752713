package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func newTestVCI(t *testing.T, handler http.HandlerFunc) *VCIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewVCIProvider(VCIOptions{BaseURL: srv.URL, RateLimit: 600, Timeout: 5 * time.Second})
	p.now = func() time.Time { return testNow }
	return p
}

func TestVCIProvider_GetDailyCandles(t *testing.T) {
	day := func(n int) int64 { return testNow.AddDate(0, 0, -n).Unix() }

	p := newTestVCI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chart/OHLCChart/gap-chart", r.URL.Path)

		var req vciChartRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ONE_DAY", req.TimeFrame)
		assert.Equal(t, []string{"FPT"}, req.Symbols)
		assert.Equal(t, testNow.Unix(), req.To)

		// t mixes strings and numbers; the first row is outside the window
		fmt.Fprintf(w, `[{"symbol":"FPT","t":["%d",%d,"%d"],"o":[90,120,121],"h":[91,122,123],"l":[89,119,120],"c":[90.5,121.5,122.8],"v":[100,2000,3000]}]`,
			day(120), day(2), day(1))
	})

	candles, err := p.GetDailyCandles(context.Background(), "fpt", 90)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 121.5, candles[0].Close)
	assert.Equal(t, 122.8, candles[1].Close)
	assert.Equal(t, int64(3000), candles[1].Volume)
	assert.True(t, candles[0].Time.Before(candles[1].Time))
}

func TestVCIProvider_EmptyResponse(t *testing.T) {
	p := newTestVCI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	_, err := p.GetDailyCandles(context.Background(), "XXX", 90)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestVCIProvider_HTTPErrors(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusNotFound, false},
	}
	for _, c := range cases {
		t.Run(http.StatusText(c.status), func(t *testing.T) {
			p := newTestVCI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
			})

			_, err := p.GetDailyCandles(context.Background(), "FPT", 90)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "vci", pe.Provider)
			assert.Equal(t, c.retryable, pe.Retryable)
			assert.ErrorIs(t, err, ErrDataUnavailable)
		})
	}
}

func TestVCIProvider_MalformedBody(t *testing.T) {
	p := newTestVCI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"an array"`)
	})

	_, err := p.GetDailyCandles(context.Background(), "FPT", 90)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestVCIProvider_GetSymbols(t *testing.T) {
	p := newTestVCI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/symbols/getByGroup", r.URL.Path)
		assert.Equal(t, "VN30", r.URL.Query().Get("group"))
		fmt.Fprint(w, `[{"symbol":"VNM","board":"HSX","organName":"Vinamilk"},{"symbol":"ACB","board":"HSX","enOrganName":"Asia Commercial Bank"}]`)
	})

	stocks, err := p.GetSymbols(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "ACB", stocks[0].Symbol)
	assert.Equal(t, "Asia Commercial Bank", stocks[0].Name)
	assert.Equal(t, "Vinamilk", stocks[1].Name)
	assert.Equal(t, "HSX", stocks[1].Exchange)
}

func TestVCIProvider_InvalidLookback(t *testing.T) {
	p := NewVCIProvider(VCIOptions{})
	_, err := p.GetDailyCandles(context.Background(), "FPT", 0)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

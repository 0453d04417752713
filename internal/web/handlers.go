package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"findash/internal/analyzer"
	"findash/internal/metrics"
	"findash/internal/montecarlo"
	"findash/internal/provider"
	"findash/internal/symbols"
)

// maxIncludedPaths bounds the paths echoed back by /api/simulate
const maxIncludedPaths = 200

// SimulateRequest is the body of POST /api/simulate
type SimulateRequest struct {
	Symbol       string `json:"symbol" binding:"required"`
	Horizon      int    `json:"horizon"`
	Paths        int    `json:"paths"`
	Seed         *int64 `json:"seed"` // omitted or null seeds from the clock
	LookbackDays int    `json:"lookback_days"`
	IncludePaths bool   `json:"include_paths"`
}

// SimulateResponse wraps a simulation result with display settings
type SimulateResponse struct {
	*montecarlo.Result
	PriceScale float64     `json:"price_scale"`
	Currency   string      `json:"currency"`
	VaRDisplay float64     `json:"var_display"`
	PathRows   [][]float64 `json:"path_rows,omitempty"` // steps x paths, provider units
}

// HistoryPoint is one row of GET /api/history/:symbol
type HistoryPoint struct {
	Date  string   `json:"date"`
	Close float64  `json:"close"`
	SMA   *float64 `json:"sma,omitempty"`
}

// CompareSeries is one symbol of GET /api/compare
type CompareSeries struct {
	Symbol string    `json:"symbol"`
	Dates  []string  `json:"dates"`
	Growth []float64 `json:"growth"`
	Error  string    `json:"error,omitempty"`
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleConfig(c *gin.Context) {
	sim := s.config.Simulation
	c.JSON(http.StatusOK, gin.H{
		"source":        s.config.Provider.Source,
		"price_scale":   s.config.Provider.PriceScale,
		"currency":      s.config.Provider.Currency,
		"lookback_days": sim.LookbackDays,
		"horizon":       sim.Horizon,
		"paths":         sim.Paths,
		"confidence":    sim.Confidence,
		"horizons":      sim.Horizons,
		"path_counts":   sim.PathCounts,
	})
}

func (s *Server) handleSymbols(c *gin.Context) {
	group := c.DefaultQuery("group", string(symbols.UniverseVN30))
	stocks, fallback, err := s.symbols.LoadGroup(c.Request.Context(), group)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"group":    strings.ToUpper(group),
		"fallback": fallback,
		"symbols":  stocks,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	symbol := symbols.Normalize(c.Param("symbol"))
	if !symbols.IsValid(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}
	days, ok := queryInt(c, "days", 365)
	if !ok {
		return
	}
	period, ok := queryInt(c, "sma", 50)
	if !ok {
		return
	}

	series, err := s.history.Series(c.Request.Context(), symbol, days)
	if err != nil {
		s.writeError(c, err)
		return
	}

	closes := series.Closes()
	sma, err := analyzer.SMA(closes, period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	points := make([]HistoryPoint, len(series.Points))
	offset := period - 1
	for i, p := range series.Points {
		points[i] = HistoryPoint{Date: p.Date.Format("2006-01-02"), Close: p.Close}
		if i >= offset && i-offset < len(sma) {
			v := sma[i-offset]
			points[i].SMA = &v
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"sma_period":  period,
		"price_scale": s.config.Provider.PriceScale,
		"currency":    s.config.Provider.Currency,
		"points":      points,
	})
}

func (s *Server) handleCompare(c *gin.Context) {
	raw := strings.Split(c.Query("symbols"), ",")
	stocks, _ := s.symbols.LoadSymbols(raw)
	if len(stocks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	days, ok := queryInt(c, "days", 365)
	if !ok {
		return
	}

	out := make([]CompareSeries, 0, len(stocks))
	for _, stock := range stocks {
		entry := CompareSeries{Symbol: stock.Symbol}
		series, err := s.history.Series(c.Request.Context(), stock.Symbol, days)
		if err != nil {
			entry.Error = err.Error()
			out = append(out, entry)
			continue
		}
		entry.Growth = analyzer.Normalize(series.Closes())
		entry.Dates = make([]string, len(series.Points))
		for i, p := range series.Points {
			entry.Dates[i] = p.Date.Format("2006-01-02")
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "series": out})
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := symbols.Normalize(req.Symbol)
	if !symbols.IsValid(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}

	sim := s.config.Simulation
	if req.Horizon == 0 {
		req.Horizon = sim.Horizon
	}
	if req.Paths == 0 {
		req.Paths = sim.Paths
	}
	if req.LookbackDays == 0 {
		req.LookbackDays = sim.LookbackDays
	}
	if req.Seed == nil {
		req.Seed = sim.Seed
	}
	if req.Paths > sim.MaxPaths || req.Horizon > sim.MaxHorizon {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "paths or horizon above the server limit",
			"limit": gin.H{"paths": sim.MaxPaths, "horizon": sim.MaxHorizon},
		})
		return
	}

	started := time.Now()
	result, err := s.simulate(c.Request.Context(), symbol, req)
	metrics.ObserveSimulation(time.Since(started), err)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := SimulateResponse{
		Result:     result,
		PriceScale: s.config.Provider.PriceScale,
		Currency:   s.config.Provider.Currency,
		VaRDisplay: result.Risk.VaR * s.config.Provider.PriceScale,
	}
	if req.IncludePaths {
		resp.PathRows = truncateColumns(result.Matrix.Rows(), maxIncludedPaths)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) simulate(ctx context.Context, symbol string, req SimulateRequest) (*montecarlo.Result, error) {
	series, err := s.history.Series(ctx, symbol, req.LookbackDays)
	if err != nil {
		return nil, err
	}
	return s.sim.Run(ctx, series, montecarlo.Params{
		Horizon: req.Horizon,
		Paths:   req.Paths,
		Seed:    req.Seed,
	})
}

func truncateColumns(rows [][]float64, n int) [][]float64 {
	for i, row := range rows {
		if len(row) > n {
			rows[i] = row[:n]
		}
	}
	return rows
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, montecarlo.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, montecarlo.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrDataUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryInt parses an optional positive integer query parameter, writing a 400 on failure
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

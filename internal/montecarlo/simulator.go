package montecarlo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"findash/pkg/model"
)

// Options holds per-simulator settings shared by every run
type Options struct {
	Workers    int
	Confidence float64
}

// DefaultOptions uses one worker per CPU and 95% confidence
func DefaultOptions() Options {
	return Options{
		Workers:    runtime.NumCPU(),
		Confidence: DefaultConfidence,
	}
}

// Params are the per-run inputs
type Params struct {
	Horizon int `json:"horizon"`
	Paths   int `json:"paths"`
	// Seed fixes the random stream; nil seeds from the clock
	Seed *int64 `json:"seed,omitempty"`
}

// Validate rejects non-positive horizons and path counts
func (p Params) Validate() error {
	if p.Horizon <= 0 {
		return invalid("horizon", p.Horizon, "must be positive")
	}
	if p.Paths <= 0 {
		return invalid("paths", p.Paths, "must be positive")
	}
	return nil
}

// Result is the output of one simulation run
type Result struct {
	RunID        string        `json:"run_id"`
	Symbol       string        `json:"symbol"`
	Observations int           `json:"observations"`
	LastPrice    float64       `json:"last_price"`
	LastDate     time.Time     `json:"last_date"`
	Volatility   float64       `json:"volatility"`
	Horizon      int           `json:"horizon"`
	Paths        int           `json:"paths"`
	Seed         int64         `json:"seed"`
	Risk         Risk          `json:"risk"`
	Matrix       *Matrix       `json:"-"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Simulator runs the volatility -> paths -> risk pipeline
type Simulator struct {
	opts     Options
	log      logrus.FieldLogger
	progress ProgressCallback
}

// NewSimulator creates a simulator. A nil logger falls back to the standard logrus logger.
func NewSimulator(opts Options, logger logrus.FieldLogger) *Simulator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Confidence == 0 {
		opts.Confidence = DefaultConfidence
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Simulator{opts: opts, log: logger}
}

// SetProgressCallback sets the per-path progress callback
func (s *Simulator) SetProgressCallback(fn ProgressCallback) {
	s.progress = fn
}

// Run simulates params.Paths price paths for series. All preconditions are
// checked before any path is drawn; on failure no partial result is returned.
func (s *Simulator) Run(ctx context.Context, series model.PriceSeries, params Params) (*Result, error) {
	startedAt := time.Now()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if series.Len() < MinObservations {
		return nil, fmt.Errorf("%s: %w: need at least %d observations, got %d",
			series.Symbol, ErrInsufficientHistory, MinObservations, series.Len())
	}

	closes := series.Closes()
	sigma, err := Volatility(closes)
	if err != nil {
		return nil, fmt.Errorf("%s: estimating volatility: %w", series.Symbol, err)
	}
	last, _ := series.Last()

	seed := ResolveSeed(params.Seed)
	logger := s.log.WithFields(logrus.Fields{
		"symbol":  series.Symbol,
		"horizon": params.Horizon,
		"paths":   params.Paths,
		"seed":    seed,
	})
	logger.Debugf("simulating from last price %.4f, daily volatility %.6f", last.Close, sigma)

	matrix, err := GeneratePaths(ctx, last.Close, sigma, params.Horizon, params.Paths, GenerateOptions{
		Seed:     seed,
		Workers:  s.opts.Workers,
		Progress: s.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: generating paths: %w", series.Symbol, err)
	}

	risk, err := SummarizeRiskAt(matrix.Ending(), last.Close, s.opts.Confidence)
	if err != nil {
		return nil, fmt.Errorf("%s: summarizing risk: %w", series.Symbol, err)
	}

	result := &Result{
		RunID:        uuid.New().String(),
		Symbol:       series.Symbol,
		Observations: series.Len(),
		LastPrice:    last.Close,
		LastDate:     last.Date,
		Volatility:   sigma,
		Horizon:      params.Horizon,
		Paths:        params.Paths,
		Seed:         seed,
		Risk:         risk,
		Matrix:       matrix,
		StartedAt:    startedAt,
		Elapsed:      time.Since(startedAt),
	}

	logger.WithField("run_id", result.RunID).
		Infof("VaR %.4f (P5 %.4f) in %s", risk.VaR, risk.TailPrice, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

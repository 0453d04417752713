package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"findash/internal/history"
	"findash/internal/metrics"
	"findash/internal/montecarlo"
	"findash/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Config holds per-scan settings
type Config struct {
	Workers      int
	Timeout      time.Duration // per symbol
	LookbackDays int
	Confidence   float64
	Params       montecarlo.Params
}

// Entry is the outcome for one symbol. Exactly one of Result and Err is set.
type Entry struct {
	Symbol string             `json:"symbol"`
	Result *montecarlo.Result `json:"result,omitempty"`
	Err    error              `json:"-"`
	Error  string             `json:"error,omitempty"`
}

// VaRRatio is VaR relative to the last price, for ranking symbols quoted at
// different price levels
func (e Entry) VaRRatio() float64 {
	if e.Result == nil || e.Result.LastPrice == 0 {
		return 0
	}
	return e.Result.Risk.VaR / e.Result.LastPrice
}

// ScanResult holds the outcome of a scan
type ScanResult struct {
	TotalScanned int           `json:"total_scanned"`
	FailedCount  int           `json:"failed_count"`
	Entries      []Entry       `json:"entries"` // successes by VaRRatio descending, then failures
	ScanTime     time.Duration `json:"scan_time"`
}

// Scanner runs the risk simulation for many symbols in parallel
type Scanner struct {
	history      *history.Service
	sim          *montecarlo.Simulator
	cfg          Config
	log          logrus.FieldLogger
	progressFunc ProgressCallback
}

// NewScanner creates a new scanner. Parallelism is across symbols, so each
// simulation runs on a single worker.
func NewScanner(h *history.Service, cfg Config, logger logrus.FieldLogger) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scanner{
		history: h,
		sim:     montecarlo.NewSimulator(montecarlo.Options{Workers: 1, Confidence: cfg.Confidence}, logger),
		cfg:     cfg,
		log:     logger,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// Scan simulates every stock. A failing symbol is reported in its entry and
// does not stop the scan; a cancelled ctx stops handing out new symbols.
func (s *Scanner) Scan(ctx context.Context, stocks []model.Stock) (*ScanResult, error) {
	startTime := time.Now()

	if len(stocks) == 0 {
		return &ScanResult{Entries: []Entry{}, ScanTime: time.Since(startTime)}, nil
	}

	jobChan := make(chan model.Stock, len(stocks))
	resultChan := make(chan Entry, len(stocks))

	for _, stock := range stocks {
		jobChan <- stock
	}
	close(jobChan)

	var scannedCount int64

	var wg sync.WaitGroup
	for i := 0; i < min(s.cfg.Workers, len(stocks)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range jobChan {
				if ctx.Err() != nil {
					return
				}
				resultChan <- s.scanOne(ctx, stock.Symbol)

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var entries []Entry
	failed := 0
	for entry := range resultChan {
		if entry.Err != nil {
			failed++
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)

	result := &ScanResult{
		TotalScanned: len(entries),
		FailedCount:  failed,
		Entries:      entries,
		ScanTime:     time.Since(startTime),
	}
	// a cancelled scan still returns what it got
	return result, ctx.Err()
}

// scanOne simulates one symbol. Config.Timeout bounds this symbol only; a
// symbol that runs out of time becomes a failed entry.
func (s *Scanner) scanOne(ctx context.Context, symbol string) Entry {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	series, err := s.history.Series(ctx, symbol, s.cfg.LookbackDays)
	if err == nil {
		var result *montecarlo.Result
		result, err = s.sim.Run(ctx, series, s.cfg.Params)
		if err == nil {
			metrics.ObserveSimulation(time.Since(started), nil)
			return Entry{Symbol: symbol, Result: result}
		}
	}
	metrics.ObserveSimulation(time.Since(started), err)
	s.log.WithError(err).WithField("symbol", symbol).Warn("scan failed")
	return Entry{Symbol: symbol, Err: err, Error: err.Error()}
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return a.Symbol < b.Symbol
		}
		if ra, rb := a.VaRRatio(), b.VaRRatio(); ra != rb {
			return ra > rb
		}
		return a.Symbol < b.Symbol
	})
}

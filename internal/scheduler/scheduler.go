package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"findash/internal/scanner"
	"findash/internal/symbols"
	"findash/pkg/model"
)

// ReportFunc receives the outcome of every scheduled pass
type ReportFunc func(*scanner.ScanResult)

// Scheduler re-runs the risk scan for a watchlist on a cron schedule.
// Passes never overlap: a tick that fires while a pass is running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	scanner *scanner.Scanner
	loader  *symbols.Loader
	symbols []string
	log     logrus.FieldLogger
	report  ReportFunc

	mu  sync.Mutex
	ctx context.Context
}

// DefaultTimezone is the exchange clock schedules are read in
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// Location loads the named zone. Hosts without tzdata get a fixed UTC+7.
func Location(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// NewScheduler creates a scheduler. An empty watchlist means the VN30 group.
// Extra cron options are applied after the defaults.
func NewScheduler(s *scanner.Scanner, loader *symbols.Loader, watchlist []string, logger logrus.FieldLogger, opts ...cron.Option) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cronLogger := cron.PrintfLogger(logger)
	cronOpts := append([]cron.Option{
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	}, opts...)
	return &Scheduler{
		cron:    cron.New(cronOpts...),
		scanner: s,
		loader:  loader,
		symbols: watchlist,
		log:     logger,
		ctx:     context.Background(),
	}
}

// OnReport sets the callback invoked after each pass
func (s *Scheduler) OnReport(fn ReportFunc) {
	s.report = fn
}

// Register adds the watch job under a six-field cron spec (seconds first)
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register watch job %q: %w", spec, err)
	}
	return nil
}

// Start runs the cron loop until ctx is done, then waits for a running pass to finish
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Infof("watch scheduler started with %d job(s)", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("watch scheduler stopped")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.RunNow(ctx); err != nil {
		s.log.WithError(err).Error("watch pass failed")
	}
}

// RunNow executes one pass immediately and returns its result
func (s *Scheduler) RunNow(ctx context.Context) (*scanner.ScanResult, error) {
	stocks, err := s.watchlist(ctx)
	if err != nil {
		return nil, err
	}

	s.log.WithField("symbols", len(stocks)).Info("running watch pass")
	result, err := s.scanner.Scan(ctx, stocks)
	if result != nil {
		s.logResult(result)
		if s.report != nil {
			s.report(result)
		}
	}
	return result, err
}

func (s *Scheduler) watchlist(ctx context.Context) ([]model.Stock, error) {
	if len(s.symbols) > 0 {
		return s.loader.LoadSymbols(s.symbols)
	}
	stocks, _, err := s.loader.LoadGroup(ctx, string(symbols.UniverseVN30))
	return stocks, err
}

func (s *Scheduler) logResult(result *scanner.ScanResult) {
	for _, e := range result.Entries {
		if e.Err != nil {
			continue
		}
		s.log.WithFields(logrus.Fields{
			"symbol":     e.Symbol,
			"run_id":     e.Result.RunID,
			"last_price": e.Result.LastPrice,
			"p5":         e.Result.Risk.TailPrice,
			"var":        e.Result.Risk.VaR,
		}).Info("watch VaR")
	}
	s.log.WithFields(logrus.Fields{
		"scanned": result.TotalScanned,
		"failed":  result.FailedCount,
		"elapsed": result.ScanTime,
	}).Info("watch pass done")
}

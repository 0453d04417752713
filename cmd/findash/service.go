package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"findash/internal/montecarlo"
	"findash/internal/scanner"
	"findash/internal/scheduler"
	"findash/internal/web"
)

// symbolTimeout bounds the fetch and simulation of one symbol in a scan
const symbolTimeout = 2 * time.Minute

func scanConfig(workers int, params montecarlo.Params) scanner.Config {
	if workers < 1 {
		workers = cfg.Simulation.Workers
	}
	return scanner.Config{
		Workers:      workers,
		Timeout:      symbolTimeout,
		LookbackDays: cfg.Simulation.LookbackDays,
		Confidence:   cfg.Simulation.Confidence,
		Params:       params,
	}
}

func defaultParams() montecarlo.Params {
	return montecarlo.Params{
		Horizon: cfg.Simulation.Horizon,
		Paths:   cfg.Simulation.Paths,
		Seed:    cfg.Simulation.Seed,
	}
}

func newScanCmd() *cobra.Command {
	var (
		group   string
		horizon int
		paths   int
		workers int
		format  string
	)
	cmd := &cobra.Command{
		Use:   "scan [SYMBOL...]",
		Short: "Rank symbols by simulated VaR relative to price",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := defaultParams()
			if horizon > 0 {
				params.Horizon = horizon
			}
			if paths > 0 {
				params.Paths = paths
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}

			stocks, err := a.symbols.LoadSymbols(args)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if stocks, _, err = a.symbols.LoadGroup(ctx, group); err != nil {
					return err
				}
			}

			s := scanner.NewScanner(a.history, scanConfig(workers, params), log.StandardLogger())
			if format != "json" {
				bar := newProgressBar(len(stocks), "Scanning")
				s.SetProgressCallback(func(scanned, total int) {
					_ = bar.Set(scanned)
				})
				defer bar.Finish()
			}

			result, scanErr := s.Scan(ctx, stocks)
			if result == nil {
				return scanErr
			}

			if format == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(result); err != nil {
					return err
				}
				return scanErr
			}
			fmt.Fprintln(os.Stderr)
			printScan(result, params)
			return scanErr
		},
	}
	cmd.Flags().StringVar(&group, "group", "VN30", "index group scanned when no symbols are given")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "trading days to simulate")
	cmd.Flags().IntVar(&paths, "paths", 0, "paths per symbol")
	cmd.Flags().IntVar(&workers, "workers", 0, "symbols simulated in parallel")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	return cmd
}

func printScan(result *scanner.ScanResult, params montecarlo.Params) {
	fmt.Printf("\n%d symbols, %d-day horizon, %d paths each (%s)\n\n",
		result.TotalScanned, params.Horizon, params.Paths, result.ScanTime.Round(time.Millisecond))

	scale := cfg.Provider.PriceScale
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "Symbol", "Last", "Volatility", "P5", "VaR", "VaR %"}),
	)
	rank := 0
	for _, e := range result.Entries {
		if e.Err != nil {
			continue
		}
		rank++
		r := e.Result
		table.Append([]string{
			fmt.Sprint(rank),
			e.Symbol,
			formatPrice(r.LastPrice * scale),
			fmt.Sprintf("%.2f%%", r.Volatility*100),
			formatPrice(r.Risk.TailPrice * scale),
			formatPrice(r.Risk.VaR * scale),
			fmt.Sprintf("%.2f%%", e.VaRRatio()*100),
		})
	}
	table.Render()

	for _, e := range result.Entries {
		if e.Err != nil {
			fmt.Printf("  %s: %v\n", e.Symbol, e.Err)
		}
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			go a.caching.RunJanitor(ctx, cfg.Cache.Janitor)

			srv := web.NewServer(cfg, a.history, a.symbols, a.simulator(0), log.StandardLogger())
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		schedule string
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch [SYMBOL...]",
		Short: "Re-run the VaR scan on a cron schedule",
		Long: `Re-runs the simulation for a watchlist on a six-field cron schedule
(seconds first). Without symbols the watchlist from the config is used,
and without one either the VN30 group.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if schedule == "" {
				schedule = cfg.Watch.Schedule
			}
			watchlist := cfg.Watch.Symbols
			if len(args) > 0 {
				watchlist = args
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			go a.caching.RunJanitor(ctx, cfg.Cache.Janitor)

			s := scanner.NewScanner(a.history, scanConfig(0, defaultParams()), log.StandardLogger())
			sched := scheduler.NewScheduler(s, a.symbols, watchlist, log.StandardLogger(),
				cron.WithLocation(scheduler.Location(cfg.Watch.Timezone)))

			if once {
				_, err := sched.RunNow(ctx)
				return err
			}
			if err := sched.Register(schedule); err != nil {
				return err
			}
			sched.Start(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec with seconds (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}

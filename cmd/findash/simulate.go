package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"findash/internal/chart"
	"findash/internal/metrics"
	"findash/internal/montecarlo"
	"findash/internal/symbols"
)

type simulateFlags struct {
	horizon  int
	paths    int
	seed     int64
	lookback int
	workers  int
	format   string
	chartDir string
	bins     int
}

func newSimulateCmd() *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate SYMBOL",
		Short: "Simulate future price paths and report the 95% VaR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, symbols.Normalize(args[0]), f)
		},
	}
	cmd.Flags().IntVar(&f.horizon, "horizon", 0, "trading days to simulate (default from config)")
	cmd.Flags().IntVar(&f.paths, "paths", 0, "number of simulated paths (default from config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (default from the clock)")
	cmd.Flags().IntVar(&f.lookback, "lookback", 0, "calendar days of history for volatility")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel path workers")
	cmd.Flags().StringVar(&f.format, "format", "table", "output format: table, json")
	cmd.Flags().StringVar(&f.chartDir, "chart-dir", "", "write path and histogram PNGs to this directory")
	cmd.Flags().IntVar(&f.bins, "bins", chart.DefaultBins, "histogram bars")
	return cmd
}

func runSimulate(cmd *cobra.Command, symbol string, f simulateFlags) error {
	if !symbols.IsValid(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}

	sim := cfg.Simulation
	params := montecarlo.Params{Horizon: sim.Horizon, Paths: sim.Paths, Seed: sim.Seed}
	if cmd.Flags().Changed("horizon") {
		params.Horizon = f.horizon
	}
	if cmd.Flags().Changed("paths") {
		params.Paths = f.paths
	}
	if cmd.Flags().Changed("seed") {
		params.Seed = &f.seed
	}
	lookback := sim.LookbackDays
	if f.lookback > 0 {
		lookback = f.lookback
	}
	// validate before touching the network
	if err := params.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}

	series, err := a.history.Series(ctx, symbol, lookback)
	if err != nil {
		return err
	}

	simulator := a.simulator(f.workers)
	if f.format != "json" {
		bar := newProgressBar(params.Paths, "Simulating")
		simulator.SetProgressCallback(func(done, total int) {
			bar.Add(1)
		})
		defer bar.Finish()
	}

	started := time.Now()
	result, err := simulator.Run(ctx, series, params)
	metrics.ObserveSimulation(time.Since(started), err)
	if err != nil {
		return err
	}

	if f.chartDir != "" {
		if err := writeCharts(f.chartDir, result, f.bins); err != nil {
			return err
		}
	}

	if f.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	fmt.Fprintln(os.Stderr)
	return printSimulation(result)
}

func printSimulation(r *montecarlo.Result) error {
	scale := cfg.Provider.PriceScale
	money := func(v float64) string {
		return fmt.Sprintf("%s %s", formatPrice(v*scale), cfg.Provider.Currency)
	}

	fmt.Printf("\n%s: %d paths x %d days from %s (%d observations)\n\n",
		r.Symbol, r.Paths, r.Horizon, r.LastDate.Format("2006-01-02"), r.Observations)

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Metric", "Value"}),
	)
	rows := [][]string{
		{"Last price", money(r.LastPrice)},
		{"Daily volatility", fmt.Sprintf("%.4f%%", r.Volatility*100)},
		{fmt.Sprintf("P%.0f ending price", (1-r.Risk.Confidence)*100), money(r.Risk.TailPrice)},
		{fmt.Sprintf("VaR (%.0f%%)", r.Risk.Confidence*100), money(r.Risk.VaR)},
		{"VaR / last price", fmt.Sprintf("%.2f%%", r.Risk.VaR/r.LastPrice*100)},
		{"Expected shortfall", money(r.Risk.ExpectedShortfall)},
		{"Mean ending price", money(r.Risk.Mean)},
		{"Median ending price", money(r.Risk.Median)},
		{"Min / Max", money(r.Risk.Min) + " / " + money(r.Risk.Max)},
		{"Seed", fmt.Sprint(r.Seed)},
		{"Run", r.RunID},
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	if r.Risk.VaR < 0 {
		fmt.Println("\nNegative VaR: even the 5th percentile path ends above the last price.")
	}
	return nil
}

func writeCharts(dir string, r *montecarlo.Result, bins int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chart dir: %w", err)
	}
	scale := cfg.Provider.PriceScale

	pathsFile := filepath.Join(dir, r.Symbol+"_paths.png")
	f, err := os.Create(pathsFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := chart.RenderPaths(f, r, scale); err != nil {
		return fmt.Errorf("rendering paths chart: %w", err)
	}

	histFile := filepath.Join(dir, r.Symbol+"_ending.png")
	h, err := os.Create(histFile)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := chart.RenderHistogram(h, r.Symbol, r.Matrix.Ending(), r.Risk.TailPrice, bins, scale); err != nil {
		return fmt.Errorf("rendering histogram: %w", err)
	}

	log.WithFields(log.Fields{"paths": pathsFile, "histogram": histFile}).Info("charts written")
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func formatPrice(v float64) string {
	if v >= 1000 || v <= -1000 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

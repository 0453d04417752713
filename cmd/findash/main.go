package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"findash/internal/cache"
	"findash/internal/config"
	"findash/internal/history"
	"findash/internal/montecarlo"
	"findash/internal/provider"
	"findash/internal/symbols"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "findash",
		Short: "Monte Carlo price-path simulator and VaR for VN30 stocks",
		Long: `FinDash estimates daily volatility from recent closes, simulates future
price paths and reports the 95% Value-at-Risk of the ending price.

Examples:
  findash simulate FPT --horizon 30 --paths 500
  findash simulate VNM --seed 42 --chart-dir ./charts
  findash history HPG --days 365
  findash compare FPT VNM VCB
  findash scan --horizon 60
  findash serve`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "findash.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(
		newSimulateCmd(),
		newHistoryCmd(),
		newCompareCmd(),
		newSymbolsCmd(),
		newScanCmd(),
		newServeCmd(),
		newWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return setupLogging(cfg.Log)
}

func setupLogging(c config.LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if c.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   true,
		}))
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// app holds the services shared by the commands
type app struct {
	caching *provider.CachingProvider
	history *history.Service
	symbols *symbols.Loader
}

func newApp() (*app, error) {
	chain, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	logger := log.StandardLogger()
	// a shared fetch may walk the whole fallback chain
	fetchTimeout := cfg.Provider.Timeout * time.Duration(1+len(cfg.Provider.Fallback))
	caching := provider.NewCachingProvider(chain, cfg.Cache.HistoryTTL, cfg.Cache.ListingTTL,
		cache.WithComputeTimeout(fetchTimeout))
	return &app{
		caching: caching,
		history: history.NewService(caching, logger),
		symbols: symbols.NewLoader(caching, logger),
	}, nil
}

func (a *app) simulator(workers int) *montecarlo.Simulator {
	if workers < 1 {
		workers = cfg.Simulation.Workers
	}
	return montecarlo.NewSimulator(montecarlo.Options{
		Workers:    workers,
		Confidence: cfg.Simulation.Confidence,
	}, log.StandardLogger())
}

// buildProviders creates the configured source followed by its fallbacks
func buildProviders(c *config.Config) (*provider.FallbackProvider, error) {
	names := append([]string{c.Provider.Source}, c.Provider.Fallback...)
	seen := make(map[string]bool, len(names))

	var providers []provider.Provider
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "vci":
			providers = append(providers, provider.NewVCIProvider(provider.VCIOptions{
				BaseURL:   c.Provider.VCI.BaseURL,
				RateLimit: c.Provider.VCI.RateLimit,
				Timeout:   c.Provider.Timeout,
			}))
		case "yahoo":
			providers = append(providers, provider.NewYahooProvider(provider.YahooOptions{
				BaseURL:   c.Provider.Yahoo.BaseURL,
				Suffix:    c.Provider.Yahoo.Suffix,
				Divisor:   c.Provider.Yahoo.Divisor,
				RateLimit: c.Provider.Yahoo.RateLimit,
				Timeout:   c.Provider.Timeout,
			}))
		case "csv":
			providers = append(providers, provider.NewCSVProvider(c.Provider.CSVDir))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}

	chain := provider.NewFallbackProvider(providers...)
	if !chain.IsAvailable() {
		return nil, fmt.Errorf("no available data providers")
	}

	names = names[:0]
	for _, p := range chain.Providers() {
		names = append(names, p.Name())
	}
	log.Debugf("using providers: %v", names)
	return chain, nil
}

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Simulation SimulationConfig `yaml:"simulation"`
	Cache      CacheConfig      `yaml:"cache"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
	Log        LogConfig        `yaml:"log"`
}

// ProviderConfig selects and tunes the market data source
type ProviderConfig struct {
	Source   string        `yaml:"source"`   // vci, yahoo or csv
	Fallback []string      `yaml:"fallback"` // tried in order after Source
	Timeout  time.Duration `yaml:"timeout"`
	VCI      SourceConfig  `yaml:"vci"`
	Yahoo    SourceConfig  `yaml:"yahoo"`
	CSVDir   string        `yaml:"csv_dir"`

	// PriceScale multiplies prices for display only. Every source is brought to
	// thousands of VND, so the default is 1000.
	PriceScale float64 `yaml:"price_scale"`
	Currency   string  `yaml:"currency"`
}

// SourceConfig holds settings of one HTTP source
type SourceConfig struct {
	BaseURL   string `yaml:"base_url"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
	Suffix    string `yaml:"suffix"`     // ticker suffix, e.g. ".VN" for yahoo

	// Divisor brings quotes into the chain's common unit. Yahoo quotes .VN
	// tickers in VND while VCI uses thousands, so yahoo defaults to 1000.
	Divisor float64 `yaml:"divisor"`
}

// SimulationConfig holds Monte Carlo defaults
type SimulationConfig struct {
	LookbackDays int     `yaml:"lookback_days"`
	Horizon      int     `yaml:"horizon"`
	Paths        int     `yaml:"paths"`
	Seed         *int64  `yaml:"seed"` // unset seeds from the clock
	Workers      int     `yaml:"workers"`
	Confidence   float64 `yaml:"confidence"`
	Horizons     []int   `yaml:"horizons"`    // choices offered to users
	PathCounts   []int   `yaml:"path_counts"` // choices offered to users
	MaxPaths     int     `yaml:"max_paths"`   // upper bound accepted from API clients
	MaxHorizon   int     `yaml:"max_horizon"`
}

// CacheConfig holds cache lifetimes
type CacheConfig struct {
	HistoryTTL time.Duration `yaml:"history_ttl"`
	ListingTTL time.Duration `yaml:"listing_ttl"`
	Janitor    time.Duration `yaml:"janitor_interval"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
}

// WatchConfig holds the scheduled re-simulation settings
type WatchConfig struct {
	Schedule string   `yaml:"schedule"` // cron spec with seconds
	Symbols  []string `yaml:"symbols"`  // empty means the VN30 group
	Timezone string   `yaml:"timezone"` // IANA zone the schedule is read in
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // empty logs to stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Source:   "vci",
			Fallback: []string{"yahoo"},
			Timeout:  30 * time.Second,
			VCI: SourceConfig{
				RateLimit: 60,
			},
			Yahoo: SourceConfig{
				RateLimit: 30,
				Suffix:    ".VN",
				Divisor:   1000,
			},
			CSVDir:     "data",
			PriceScale: 1000,
			Currency:   "VND",
		},
		Simulation: SimulationConfig{
			LookbackDays: 90,
			Horizon:      30,
			Paths:        500,
			Workers:      runtime.NumCPU(),
			Confidence:   0.95,
			Horizons:     []int{30, 60, 90},
			PathCounts:   []int{200, 500, 1000},
			MaxPaths:     100000,
			MaxHorizon:   365,
		},
		Cache: CacheConfig{
			HistoryTTL: 10 * time.Minute,
			ListingTTL: time.Hour,
			Janitor:    5 * time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Watch: WatchConfig{
			Schedule: "0 30 15 * * 1-5", // after HOSE close
			Timezone: "Asia/Ho_Chi_Minh",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Use defaults if file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from FINDASH_* environment variables
func (c *Config) applyEnv() error {
	if source := os.Getenv("FINDASH_SOURCE"); source != "" {
		c.Provider.Source = strings.ToLower(source)
	}
	if seed := os.Getenv("FINDASH_SEED"); seed != "" {
		v, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return fmt.Errorf("FINDASH_SEED: %w", err)
		}
		c.Simulation.Seed = &v
	}
	if level := os.Getenv("FINDASH_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if dir := os.Getenv("FINDASH_CSV_DIR"); dir != "" {
		c.Provider.CSVDir = dir
	}
	return nil
}

var knownSources = map[string]bool{"vci": true, "yahoo": true, "csv": true}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !knownSources[c.Provider.Source] {
		return fmt.Errorf("unknown provider source %q (want vci, yahoo or csv)", c.Provider.Source)
	}
	for _, f := range c.Provider.Fallback {
		if !knownSources[f] {
			return fmt.Errorf("unknown fallback source %q", f)
		}
	}
	if c.Provider.PriceScale <= 0 {
		return fmt.Errorf("price_scale must be positive")
	}
	if c.Provider.Yahoo.Divisor < 0 {
		return fmt.Errorf("yahoo divisor must not be negative")
	}

	s := c.Simulation
	if s.LookbackDays < 2 {
		return fmt.Errorf("lookback_days must be at least 2")
	}
	if s.Horizon < 1 {
		return fmt.Errorf("horizon must be at least 1")
	}
	if s.Paths < 1 {
		return fmt.Errorf("paths must be at least 1")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if !(s.Confidence > 0 && s.Confidence < 1) {
		return fmt.Errorf("confidence must be within (0, 1)")
	}
	if s.MaxPaths < s.Paths || s.MaxHorizon < s.Horizon {
		return fmt.Errorf("max_paths and max_horizon must not be below the defaults")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json")
	}
	return nil
}

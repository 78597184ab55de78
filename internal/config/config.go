// Package config loads runtime settings with the precedence
// defaults < config file < environment < flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

type Config struct {
	Symbol         string        `yaml:"symbol"`
	Feed           string        `yaml:"feed"`
	ShortSpan      int           `yaml:"short_span"`
	LongSpan       int           `yaml:"long_span"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	LiquidateAt    string        `yaml:"liquidate_at"`
	Timezone       string        `yaml:"timezone"`
	MarketOpen     string        `yaml:"market_open"`
	MarketClose    string        `yaml:"market_close"`
	SizingFraction float64       `yaml:"sizing_fraction"`
	MaxNotional    float64       `yaml:"max_notional"`
	KillSwitch     bool          `yaml:"kill_switch"`
	DecisionsPath  string        `yaml:"decisions_path"`
	JournalPath    string        `yaml:"journal_path"`
	DataDir        string        `yaml:"data_dir"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	PaperBaseURL   string        `yaml:"paper_base_url"`
	SMTP           SMTP          `yaml:"smtp"`

	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Symbol:         "TSLA",
		Feed:           "iex",
		ShortSpan:      5,
		LongSpan:       10,
		PollInterval:   62 * time.Second,
		LiquidateAt:    "14:55",
		Timezone:       "America/Chicago",
		MarketOpen:     "08:30",
		MarketClose:    "15:00",
		SizingFraction: 0.2,
		DecisionsPath:  "decisions.ndjson",
		JournalPath:    "journal.db",
		DataDir:        "data",
		PaperBaseURL:   "https://paper-api.alpaca.markets",
	}
}

// Load parses configuration from defaults, file, environment, and CLI flags.
// Callers with binary-specific flags register them through extra before the
// arguments are parsed.
func Load(extra ...func(*flag.FlagSet)) (Config, error) {
	return load(os.Args[1:], extra...)
}

func load(args []string, extra ...func(*flag.FlagSet)) (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := defaults()

	fs := flag.NewFlagSet("ewmabot", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.String("symbol", cfg.Symbol, "trading symbol")
	fs.String("feed", cfg.Feed, "market data feed: iex or sip")
	fs.Int("short-span", cfg.ShortSpan, "short EWMA span")
	fs.Int("long-span", cfg.LongSpan, "long EWMA span; also the warm-up sample count")
	fs.Duration("poll-interval", cfg.PollInterval, "delay between price polls")
	fs.String("liquidate-at", cfg.LiquidateAt, "wall-clock HH:MM to liquidate and stop")
	fs.String("timezone", cfg.Timezone, "IANA location for the trading clock")
	fs.Float64("sizing-fraction", cfg.SizingFraction, "fraction of buying power / position per order")
	fs.Float64("max-notional", cfg.MaxNotional, "max notional per order, 0 disables")
	fs.Bool("kill-switch", cfg.KillSwitch, "if true, never place orders")
	fs.String("decisions-path", cfg.DecisionsPath, "path to decisions log")
	fs.String("journal-path", cfg.JournalPath, "path to the sqlite trade journal")
	fs.String("data-dir", cfg.DataDir, "directory for archived minute bars")
	fs.String("metrics-addr", cfg.MetricsAddr, "metrics listen address, empty disables")
	fs.String("paper-base-url", cfg.PaperBaseURL, "paper trading base URL")
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if err := applyFlags(fs, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
}

// applyFlags copies only the flags the caller set explicitly, so CLI wins
// over file and environment values.
func applyFlags(fs *flag.FlagSet, cfg *Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		value := f.Value.String()
		switch f.Name {
		case "symbol":
			cfg.Symbol = value
		case "feed":
			cfg.Feed = value
		case "short-span":
			cfg.ShortSpan, err = strconv.Atoi(value)
		case "long-span":
			cfg.LongSpan, err = strconv.Atoi(value)
		case "poll-interval":
			cfg.PollInterval, err = time.ParseDuration(value)
		case "liquidate-at":
			cfg.LiquidateAt = value
		case "timezone":
			cfg.Timezone = value
		case "sizing-fraction":
			cfg.SizingFraction, err = strconv.ParseFloat(value, 64)
		case "max-notional":
			cfg.MaxNotional, err = strconv.ParseFloat(value, 64)
		case "kill-switch":
			cfg.KillSwitch, err = strconv.ParseBool(value)
		case "decisions-path":
			cfg.DecisionsPath = value
		case "journal-path":
			cfg.JournalPath = value
		case "data-dir":
			cfg.DataDir = value
		case "metrics-addr":
			cfg.MetricsAddr = value
		case "paper-base-url":
			cfg.PaperBaseURL = value
		}
	})
	return err
}

func validate(cfg Config) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if cfg.ShortSpan < 1 {
		return fmt.Errorf("short-span must be >= 1")
	}
	if cfg.LongSpan <= cfg.ShortSpan {
		return fmt.Errorf("long-span must be > short-span")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be > 0")
	}
	if cfg.SizingFraction <= 0 || cfg.SizingFraction > 1 {
		return fmt.Errorf("sizing-fraction must be in (0, 1]")
	}
	if cfg.MaxNotional < 0 {
		return fmt.Errorf("max-notional must be >= 0")
	}
	if _, _, err := ParseClock(cfg.LiquidateAt); err != nil {
		return fmt.Errorf("liquidate-at: %w", err)
	}
	if _, _, err := ParseClock(cfg.MarketOpen); err != nil {
		return fmt.Errorf("market-open: %w", err)
	}
	if _, _, err := ParseClock(cfg.MarketClose); err != nil {
		return fmt.Errorf("market-close: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// RequireCredentials rejects a config without broker API keys. The trading
// bot and the archiver both call this; validation itself stays key-agnostic
// so tests can load configs without credentials.
func (c Config) RequireCredentials() error {
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	return nil
}

// Location resolves the configured trading timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ParseClock parses an "HH:MM" wall-clock value.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q, want HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

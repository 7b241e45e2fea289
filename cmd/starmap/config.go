package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the settings of one demo run. Values come from struct
// defaults, then the config file, then STARMAP_* variables, then flags.
type Config struct {
	Inputs    int           `mapstructure:"inputs" default:"20"`
	Threads   int           `mapstructure:"threads" default:"0"`
	FailEvery int           `mapstructure:"fail-every" default:"0"`
	Delay     time.Duration `mapstructure:"delay" default:"10ms"`
	Drain     bool          `mapstructure:"drain" default:"true"`

	Rate    float64 `mapstructure:"rate" default:"0"`
	Burst   int     `mapstructure:"burst" default:"1"`
	Retries int     `mapstructure:"retries" default:"1"`
	Pin     bool    `mapstructure:"pin"`

	Verbose bool `mapstructure:"verbose"`
}

func newConfig() *Config {
	cfg := &Config{}
	defaults.MustSet(cfg)
	return cfg
}

func (c Config) Validate() error {
	if c.Inputs < 1 {
		return fmt.Errorf("invalid inputs %d: must be at least 1", c.Inputs)
	}
	if c.Threads < 0 {
		return fmt.Errorf("invalid threads %d: use 0 for one worker per physical core", c.Threads)
	}
	if c.FailEvery < 0 {
		return errors.New("fail-every must not be negative")
	}
	if c.Delay < 0 {
		return errors.New("delay must not be negative")
	}
	if c.Rate < 0 || (c.Rate > 0 && c.Burst < 1) {
		return fmt.Errorf("invalid rate limit %v/s with burst %d", c.Rate, c.Burst)
	}
	if c.Retries < 1 {
		return fmt.Errorf("invalid retries %d: must be at least 1", c.Retries)
	}
	return nil
}

// addRunFlags registers the run flags with the defaults of cfg.
func addRunFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Inputs, "inputs", cfg.Inputs, "Number of inputs to map over")
	fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "Worker count (0 = one per physical core)")
	fs.IntVar(&cfg.FailEvery, "fail-every", cfg.FailEvery, "Panic on every non-zero input divisible by this (0 = never)")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Simulated work per input")
	fs.BoolVar(&cfg.Drain, "drain", cfg.Drain, "Run queued tasks on shutdown instead of dropping them")
	fs.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Task starts per second (0 = unlimited)")
	fs.IntVar(&cfg.Burst, "burst", cfg.Burst, "Rate limiter burst")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Attempts per input for returned errors")
	fs.BoolVar(&cfg.Pin, "pin", cfg.Pin, "Pin each worker to its own core (Linux only)")
}

// loadConfig resolves the final configuration from fs, the environment and
// an optional config file.
func loadConfig(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STARMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	cfg := newConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/utkarsh5026/starmap/pool"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := newConfig()

	if cfg.Inputs != 20 {
		t.Errorf("expected 20 inputs, got %d", cfg.Inputs)
	}
	if cfg.Delay != 10*time.Millisecond {
		t.Errorf("expected 10ms delay, got %v", cfg.Delay)
	}
	if !cfg.Drain {
		t.Error("expected drain to default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no inputs", mutate: func(c *Config) { c.Inputs = 0 }},
		{name: "negative threads", mutate: func(c *Config) { c.Threads = -1 }},
		{name: "negative fail-every", mutate: func(c *Config) { c.FailEvery = -3 }},
		{name: "negative delay", mutate: func(c *Config) { c.Delay = -time.Second }},
		{name: "rate without burst", mutate: func(c *Config) { c.Rate = 5; c.Burst = 0 }},
		{name: "zero retries", mutate: func(c *Config) { c.Retries = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
		addRunFlags(fs, newConfig())
		return fs
	}

	t.Run("flags override defaults", func(t *testing.T) {
		fs := newFlags()
		if err := fs.Parse([]string{"--inputs", "7", "--threads", "2", "--drain=false"}); err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		cfg, err := loadConfig(fs, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Inputs != 7 || cfg.Threads != 2 || cfg.Drain {
			t.Errorf("flags not applied: %+v", cfg)
		}
		if cfg.Delay != 10*time.Millisecond {
			t.Errorf("expected default delay, got %v", cfg.Delay)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("STARMAP_FAIL_EVERY", "4")
		fs := newFlags()
		_ = fs.Parse(nil)

		cfg, err := loadConfig(fs, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.FailEvery != 4 {
			t.Errorf("expected fail-every 4 from env, got %d", cfg.FailEvery)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "starmap.yaml")
		if err := os.WriteFile(path, []byte("inputs: 12\ndelay: 1ms\n"), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		fs := newFlags()
		_ = fs.Parse(nil)

		cfg, err := loadConfig(fs, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Inputs != 12 || cfg.Delay != time.Millisecond {
			t.Errorf("config file not applied: %+v", cfg)
		}
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		fs := newFlags()
		_ = fs.Parse([]string{"--inputs", "0"})

		if _, err := loadConfig(fs, ""); err == nil {
			t.Error("expected a validation error")
		}
	})
}

func TestRunDemo(t *testing.T) {
	cfg := newConfig()
	cfg.Inputs = 10
	cfg.Threads = 3
	cfg.FailEvery = 4
	cfg.Delay = time.Millisecond

	r, err := runDemo(cfg, zap.NewNop(), io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.Outcomes) != 10 {
		t.Fatalf("expected 10 outcomes, got %d", len(r.Outcomes))
	}
	if r.Failed != 2 {
		t.Errorf("expected inputs 4 and 8 to fail, got %d failures", r.Failed)
	}
	for i, o := range r.Outcomes {
		if i != 0 && i%4 == 0 {
			if o.Ok() {
				t.Errorf("input %d should have failed", i)
			}
			continue
		}
		if o.Value != i*i {
			t.Errorf("input %d: expected %d, got %d", i, i*i, o.Value)
		}
	}
	if got := r.Counters[`starmap_tasks_total{outcome="panic"}`]; got != 2 {
		t.Errorf("expected 2 panics counted, got %v", got)
	}

	var out bytes.Buffer
	if err := renderReport(&out, r); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"panic", "81", "Summary", "Errors:    2 joined"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestDescribe(t *testing.T) {
	status, result := describe(pool.Outcome[int]{Value: 9, Index: 3})
	if !strings.Contains(status, "ok") || result != "9" {
		t.Errorf("unexpected cells %q %q", status, result)
	}

	status, _ = describe(pool.Outcome[int]{Err: pool.ErrTaskDropped})
	if !strings.Contains(status, "dropped") {
		t.Errorf("expected dropped status, got %q", status)
	}
}

package cliconfig

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelURL != DefaultModelURL {
		t.Errorf("ModelURL = %v, want %v", cfg.ModelURL, DefaultModelURL)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.PollTimeout != 120*time.Second {
		t.Errorf("PollTimeout = %v, want 120s", cfg.PollTimeout)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %v, want 3", cfg.RetryAttempts)
	}
	if cfg.RetryBackoff != 500*time.Millisecond {
		t.Errorf("RetryBackoff = %v, want 500ms", cfg.RetryBackoff)
	}
	if cfg.BusyRechecks != 1 {
		t.Errorf("BusyRechecks = %v, want 1", cfg.BusyRechecks)
	}
	if cfg.ServerURL != "http://"+DefaultListen {
		t.Errorf("ServerURL = %v, want http://%v", cfg.ServerURL, DefaultListen)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := DefaultConfig()
		c.StateDir = "/tmp/modelhost"
		return c
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		wantCache string
		wantURL   string
	}{
		{
			name:      "defaults derive cache dir",
			mutate:    func(*Config) {},
			wantCache: filepath.Join("/tmp/modelhost", "models"),
			wantURL:   "http://" + DefaultListen,
		},
		{
			name: "explicit cache dir kept",
			mutate: func(c *Config) {
				c.CacheDir = "/var/cache/models"
			},
			wantCache: "/var/cache/models",
			wantURL:   "http://" + DefaultListen,
		},
		{
			name: "trailing slash trimmed from server url",
			mutate: func(c *Config) {
				c.ServerURL = "http://remote:9000/"
			},
			wantCache: filepath.Join("/tmp/modelhost", "models"),
			wantURL:   "http://remote:9000",
		},
		{
			name: "empty server url derived from listen",
			mutate: func(c *Config) {
				c.ServerURL = ""
				c.Listen = "0.0.0.0:9999"
			},
			wantCache: filepath.Join("/tmp/modelhost", "models"),
			wantURL:   "http://0.0.0.0:9999",
		},
		{
			name:    "missing model url",
			mutate:  func(c *Config) { c.ModelURL = "" },
			wantErr: true,
		},
		{
			name:    "relative model url",
			mutate:  func(c *Config) { c.ModelURL = "model.gguf" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "ceiling shorter than interval",
			mutate:  func(c *Config) { c.PollTimeout = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.RetryAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "zero busy rechecks",
			mutate:  func(c *Config) { c.BusyRechecks = 0 },
			wantErr: true,
		},
		{
			name:    "negative backoff",
			mutate:  func(c *Config) { c.RetryBackoff = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if cfg.CacheDir != tt.wantCache {
				t.Errorf("CacheDir = %v, want %v", cfg.CacheDir, tt.wantCache)
			}
			if cfg.ServerURL != tt.wantURL {
				t.Errorf("ServerURL = %v, want %v", cfg.ServerURL, tt.wantURL)
			}
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "bogus"} {
		cfg := Config{LogLevel: level}
		if cfg.Logger() == nil {
			t.Errorf("Logger(%q) = nil", level)
		}
	}
}

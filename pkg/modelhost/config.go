package modelhost

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
)

// Config configures a Host.
type Config struct {
	// ModelURL is the model source. Required.
	ModelURL string

	// InferenceURL is a llama.cpp compatible server used for completions.
	InferenceURL string

	// CacheDir holds downloaded weights. Defaults to StateDir/models.
	CacheDir string

	// StateDir holds status.json. Defaults to ~/.modelhost.
	StateDir string

	// ConfigPath is the file the configuration came from, for plugins that
	// watch it.
	ConfigPath string

	// Listen is the HTTP address. Empty keeps the host in process only.
	Listen string

	RequestTimeout time.Duration
	HTTPTimeout    time.Duration

	RetryAttempts    int
	RetryBackoff     time.Duration
	SettleDelay      time.Duration
	InitSettle       time.Duration
	BusyRecheckDelay time.Duration
	BusyRechecks     int

	// Lazy defers the load to the first INIT instead of Start.
	Lazy bool

	// Simulate replaces the model with an in-memory engine.
	Simulate bool
}

// SetDefaults fills zero fields with defaults.
func (c *Config) SetDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Minute
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 100 * time.Millisecond
	}
	if c.InitSettle == 0 {
		c.InitSettle = 200 * time.Millisecond
	}
	if c.BusyRecheckDelay == 0 {
		c.BusyRecheckDelay = time.Second
	}
	if c.BusyRechecks == 0 {
		c.BusyRechecks = 1
	}
	if c.StateDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(h, ".modelhost")
		}
	}
	if c.CacheDir == "" && c.StateDir != "" {
		c.CacheDir = filepath.Join(c.StateDir, "models")
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ModelURL == "" {
		return fmt.Errorf("%w: ModelURL is required", domain.ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.ModelURL); err != nil {
		return fmt.Errorf("%w: ModelURL: %v", domain.ErrInvalidConfig, err)
	}
	if c.StateDir == "" {
		return fmt.Errorf("%w: StateDir is required", domain.ErrInvalidConfig)
	}
	if c.RetryAttempts < 1 || c.BusyRechecks < 1 {
		return fmt.Errorf("%w: retry attempts and busy rechecks must be at least 1", domain.ErrInvalidConfig)
	}
	return nil
}

package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/modelhost/internal/domain"
)

// DefaultModelURL is the classifier weights served by default.
const DefaultModelURL = "https://huggingface.co/Priyansu19/ai-slop-gemma-fp32_gguf/resolve/main/model-q4.gguf"

// DefaultListen is where `modelhost serve` listens by default.
const DefaultListen = "127.0.0.1:7733"

// Config holds CLI configuration for modelhost.
type Config struct {
	// ConfigPath is the file the configuration was read from, if any.
	ConfigPath string

	Listen       string
	ServerURL    string
	ModelURL     string
	InferenceURL string
	CacheDir     string
	StateDir     string

	PollInterval   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration

	RetryAttempts    int
	RetryBackoff     time.Duration
	SettleDelay      time.Duration
	InitSettle       time.Duration
	BusyRecheckDelay time.Duration
	BusyRechecks     int

	LogLevel    string
	Simulate    bool
	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Listen:           DefaultListen,
		ServerURL:        "http://" + DefaultListen,
		ModelURL:         DefaultModelURL,
		PollInterval:     time.Second,
		PollTimeout:      120 * time.Second,
		RequestTimeout:   60 * time.Second,
		RetryAttempts:    3,
		RetryBackoff:     500 * time.Millisecond,
		SettleDelay:      100 * time.Millisecond,
		InitSettle:       200 * time.Millisecond,
		BusyRecheckDelay: time.Second,
		BusyRechecks:     1,
		LogLevel:         "info",
		CacheDir:         "", // Derived from StateDir during Validate
		StateDir:         "", // Derived from the home directory during Validate
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ModelURL == "" {
		return fmt.Errorf("%w: model-url is required", domain.ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.ModelURL); err != nil {
		return fmt.Errorf("%w: model-url: %v", domain.ErrInvalidConfig, err)
	}

	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	c.InferenceURL = strings.TrimRight(c.InferenceURL, "/")
	if c.ServerURL == "" {
		c.ServerURL = "http://" + c.Listen
	}

	if c.StateDir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("%w: state-dir is required (no home directory)", domain.ErrInvalidConfig)
		}
		c.StateDir = filepath.Join(h, ".modelhost")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.StateDir, "models")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if c.PollTimeout < c.PollInterval {
		return fmt.Errorf("%w: poll timeout must not be shorter than the poll interval", domain.ErrInvalidConfig)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1", domain.ErrInvalidConfig)
	}
	if c.BusyRechecks < 1 {
		return fmt.Errorf("%w: busy rechecks must be at least 1", domain.ErrInvalidConfig)
	}
	if c.RetryBackoff < 0 || c.SettleDelay < 0 || c.InitSettle < 0 || c.BusyRecheckDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", domain.ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", domain.ErrInvalidConfig, err)
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Listen           string `toml:"listen"`
	ServerURL        string `toml:"server_url"`
	ModelURL         string `toml:"model_url"`
	InferenceURL     string `toml:"inference_url"`
	CacheDir         string `toml:"cache_dir"`
	StateDir         string `toml:"state_dir"`
	PollInterval     string `toml:"poll_interval"`
	PollTimeout      string `toml:"poll_timeout"`
	RequestTimeout   string `toml:"request_timeout"`
	RetryAttempts    int    `toml:"retry_attempts"`
	RetryBackoff     string `toml:"retry_backoff"`
	SettleDelay      string `toml:"settle_delay"`
	InitSettle       string `toml:"init_settle"`
	BusyRecheckDelay string `toml:"busy_recheck_delay"`
	BusyRechecks     int    `toml:"busy_rechecks"`
	LogLevel         string `toml:"log_level"`
	Simulate         *bool  `toml:"simulate"`
	WatchConfig      *bool  `toml:"watch_config"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.modelhost/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".modelhost", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("server", fc.ServerURL, &cfg.ServerURL)
	s.setString("model-url", fc.ModelURL, &cfg.ModelURL)
	s.setString("inference-url", fc.InferenceURL, &cfg.InferenceURL)
	s.setString("cache-dir", fc.CacheDir, &cfg.CacheDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"poll", fc.PollInterval, &cfg.PollInterval},
		{"poll-timeout", fc.PollTimeout, &cfg.PollTimeout},
		{"timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"retry-backoff", fc.RetryBackoff, &cfg.RetryBackoff},
		{"settle", fc.SettleDelay, &cfg.SettleDelay},
		{"init-settle", fc.InitSettle, &cfg.InitSettle},
		{"busy-recheck-delay", fc.BusyRecheckDelay, &cfg.BusyRecheckDelay},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("retry-attempts", fc.RetryAttempts, &cfg.RetryAttempts)
	s.setInt("busy-rechecks", fc.BusyRechecks, &cfg.BusyRechecks)

	s.setBool("simulate", fc.Simulate, &cfg.Simulate)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

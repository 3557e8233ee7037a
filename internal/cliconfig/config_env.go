package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (MODELHOST_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv("MODELHOST_LISTEN"), &cfg.Listen)
	s.setString("server", os.Getenv("MODELHOST_SERVER_URL"), &cfg.ServerURL)
	s.setString("model-url", os.Getenv("MODELHOST_MODEL_URL"), &cfg.ModelURL)
	s.setString("inference-url", os.Getenv("MODELHOST_INFERENCE_URL"), &cfg.InferenceURL)
	s.setString("cache-dir", os.Getenv("MODELHOST_CACHE_DIR"), &cfg.CacheDir)
	s.setString("state-dir", os.Getenv("MODELHOST_STATE_DIR"), &cfg.StateDir)
	s.setString("log-level", os.Getenv("MODELHOST_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", os.Getenv("MODELHOST_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("poll-timeout", os.Getenv("MODELHOST_POLL_TIMEOUT"), &cfg.PollTimeout); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("MODELHOST_REQUEST_TIMEOUT"), &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-backoff", os.Getenv("MODELHOST_RETRY_BACKOFF"), &cfg.RetryBackoff); err != nil {
		return err
	}
	if err := s.setDuration("settle", os.Getenv("MODELHOST_SETTLE_DELAY"), &cfg.SettleDelay); err != nil {
		return err
	}
	if err := s.setDuration("init-settle", os.Getenv("MODELHOST_INIT_SETTLE"), &cfg.InitSettle); err != nil {
		return err
	}
	if err := s.setDuration("busy-recheck-delay", os.Getenv("MODELHOST_BUSY_RECHECK_DELAY"), &cfg.BusyRecheckDelay); err != nil {
		return err
	}

	if err := s.setIntFromString("retry-attempts", os.Getenv("MODELHOST_RETRY_ATTEMPTS"), &cfg.RetryAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("busy-rechecks", os.Getenv("MODELHOST_BUSY_RECHECKS"), &cfg.BusyRechecks); err != nil {
		return err
	}

	s.setBoolFromString("simulate", os.Getenv("MODELHOST_SIMULATE"), &cfg.Simulate)
	s.setBoolFromString("watch-config", os.Getenv("MODELHOST_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}

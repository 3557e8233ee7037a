package configwatcher

import "github.com/bft-labs/modelhost/pkg/modelhost"

// WithConfigWatcher returns a modelhost Option that reloads the model when
// model_url changes in the host's config file.
//
// Usage:
//
//	h, err := modelhost.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        RetryInterval: 5 * time.Second,
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) modelhost.Option {
	return modelhost.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher returns a modelhost Option that enables config
// watching with default settings (retry every 5s, debounce 100ms).
func WithDefaultConfigWatcher() modelhost.Option {
	return WithConfigWatcher(DefaultConfig())
}

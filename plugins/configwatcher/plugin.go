// Package configwatcher reloads the model when the host's config file
// changes. It watches the file's directory and, when model_url differs from
// the source in use, asks the host to reload.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/modelhost/internal/cliconfig"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/modelhost"
)

// Plugin implements config watching.
type Plugin struct {
	mu sync.Mutex

	retryInterval time.Duration
	debounceDelay time.Duration

	path     string
	applied  string
	current  func() string
	reloader modelhost.Reloader
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// RetryInterval is the delay between reload attempts on failure.
	// Default: 5 seconds
	RetryInterval time.Duration

	// DebounceDelay is the delay to wait after a file change before reading it.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching cfg.ConfigPath. Without a path or a reloader
// the plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg modelhost.PluginConfig) error {
	p.mu.Lock()
	p.path = cfg.ConfigPath
	p.applied = cfg.ModelURL
	p.current = cfg.Source
	if p.current == nil {
		p.current = p.lastApplied
	}
	p.reloader = cfg.Reloader
	p.logger = log.OrNoop(cfg.Logger).With(log.String("plugin", p.Name()))
	p.mu.Unlock()

	if p.path == "" || p.reloader == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer watcher.Close()
		p.watch(runCtx, watcher)
	}()

	p.logger.Info("watching config file", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.debounce != nil && p.debounce.Stop() {
		p.wg.Done()
	}
	p.debounce = nil
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Source returns the model source the host is running. Without a source
// func from the host it is the last source the watcher applied.
func (p *Plugin) Source() string {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return ""
	}
	return current()
}

func (p *Plugin) lastApplied() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

func (p *Plugin) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			p.debounceApply(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceApply(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil && p.debounce.Stop() {
		p.wg.Done()
	}
	p.wg.Add(1)
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		defer p.wg.Done()
		p.apply(ctx)
	})
}

// apply reads the config file and reloads when model_url changed. Reload
// failures are retried until they succeed or the watcher stops.
func (p *Plugin) apply(ctx context.Context) {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Warn("failed to read config file", log.Err(err))
		return
	}

	if fc.ModelURL == "" || fc.ModelURL == p.Source() {
		return
	}

	retries := 0
	for {
		err := p.reloader.Reload(ctx, fc.ModelURL)
		if err == nil {
			p.mu.Lock()
			p.applied = fc.ModelURL
			p.mu.Unlock()
			p.logger.Info("model source reloaded", log.String("source", fc.ModelURL), log.Int("retries", retries))
			return
		}

		retries++
		p.logger.Error("reload failed", log.Err(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}
}

// Ensure Plugin implements modelhost.Plugin.
var _ modelhost.Plugin = (*Plugin)(nil)

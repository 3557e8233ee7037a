// Package cachecleanup keeps the model download cache bounded. When the
// cache grows past a high watermark it removes the least recently modified
// files until it is under the low watermark. The file for the model in use
// is never removed.
package cachecleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/modelhost"
)

const partialSuffix = ".part"

// Plugin implements cache cleanup.
type Plugin struct {
	mu sync.RWMutex

	checkInterval time.Duration
	highWatermark int64
	lowWatermark  int64

	cacheDir string
	source   func() string
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Config holds configuration options for the cache cleanup plugin.
type Config struct {
	// CheckInterval is how often to check the cache size.
	// Default: 24 hours
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which cleanup begins.
	// Default: 8 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after cleanup.
	// Default: 6 GiB
	LowWatermark int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 24 * time.Hour,
		HighWatermark: 8 << 30,
		LowWatermark:  6 << 30,
	}
}

// New creates a new cache cleanup plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = def.HighWatermark
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark * 3 / 4
	}

	return &Plugin{
		checkInterval: cfg.CheckInterval,
		highWatermark: cfg.HighWatermark,
		lowWatermark:  cfg.LowWatermark,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "cachecleanup"
}

// Initialize starts the cleanup loop. It runs one check immediately.
func (p *Plugin) Initialize(ctx context.Context, cfg modelhost.PluginConfig) error {
	source := cfg.Source
	if source == nil {
		source = func() string { return cfg.ModelURL }
	}

	p.mu.Lock()
	p.cacheDir = cfg.CacheDir
	p.source = source
	p.logger = log.OrNoop(cfg.Logger).With(log.String("plugin", p.Name()))
	p.mu.Unlock()

	if p.cacheDir == "" {
		p.logger.Warn("cache cleanup disabled: no cache directory configured")
		return nil
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.cleanupLoop(cleanupCtx)
	return nil
}

// Shutdown stops the cleanup loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	p.cleanupOnce(ctx)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupOnce(ctx)
		}
	}
}

// cleanupOnce performs a single cleanup check and returns the bytes freed.
func (p *Plugin) cleanupOnce(ctx context.Context) int64 {
	p.mu.RLock()
	dir := p.cacheDir
	source := p.source
	p.mu.RUnlock()

	files, total, err := cachedFiles(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Error("cache size check failed", log.Err(err))
		}
		return 0
	}
	if total <= p.highWatermark {
		return 0
	}

	protected := map[string]bool{}
	if name, err := engine.CacheFileName(source()); err == nil {
		protected[name] = true
		protected[name+partialSuffix] = true
	}

	var removed int64
	for _, f := range files {
		if ctx.Err() != nil || total <= p.lowWatermark {
			break
		}
		if protected[f.name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			p.logger.Error("remove cached model failed", log.String("file", f.name), log.Err(err))
			continue
		}
		total -= f.size
		removed += f.size
		p.logger.Debug("removed cached model", log.String("file", f.name), log.Int64("bytes", f.size))
	}

	if removed > 0 {
		p.logger.Info("cache cleanup completed", log.Int64("freed_bytes", removed), log.Int64("cache_bytes", total))
	}
	return removed
}

type cachedFile struct {
	name    string
	size    int64
	modTime time.Time
}

// cachedFiles lists regular files in dir, oldest first, and their total size.
func cachedFiles(dir string) ([]cachedFile, int64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var (
		files []cachedFile
		total int64
	)
	for _, e := range ents {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, 0, err
		}
		files = append(files, cachedFile{name: e.Name(), size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, total, nil
}

// Ensure Plugin implements modelhost.Plugin.
var _ modelhost.Plugin = (*Plugin)(nil)

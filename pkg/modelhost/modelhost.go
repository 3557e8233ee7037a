package modelhost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bft-labs/modelhost/internal/adapters/fs"
	"github.com/bft-labs/modelhost/internal/app"
	"github.com/bft-labs/modelhost/internal/client"
	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/pkg/lifecycle"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/retry"
	"github.com/bft-labs/modelhost/pkg/transport"
)

const (
	simulatedSteps     = 20
	simulatedStepDelay = 25 * time.Millisecond
)

// Host runs the coordinator and worker host. Use New() to create an
// instance, then Start() to begin serving.
type Host struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    log.Logger
	plugins   []Plugin

	mu     sync.RWMutex
	inner  *app.Host
	cancel context.CancelFunc
}

// New creates a Host in StateStopped. Nothing is loaded until Start.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Host, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := options{httpClient: &http.Client{Timeout: cfg.HTTPTimeout}}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)

	var emitter app.EventEmitter
	if o.eventHandler != nil {
		emitter = &serviceEvents{handler: o.eventHandler}
	}

	return &Host{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		logger:    logger,
		plugins:   o.plugins,
	}, nil
}

// Start begins serving in the background and, unless Config.Lazy is set,
// starts loading the model. It returns once the host is wired; the load
// continues on its own.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := h.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	var emitters []lifecycle.EventEmitter
	if h.opts.eventHandler != nil {
		emitters = append(emitters, &modelEvents{handler: h.opts.eventHandler})
	}
	inner, err := app.NewHost(h.hostConfig(), h.engineFactory(),
		fs.NewStatusFileRepository(h.config.StateDir), h.logger, emitters...)
	if err != nil {
		_ = h.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.inner = inner
	h.cancel = cancel
	h.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		ModelURL:   h.config.ModelURL,
		CacheDir:   h.config.CacheDir,
		StateDir:   h.config.StateDir,
		ConfigPath: h.config.ConfigPath,
		Logger:     h.logger,
		Reloader:   reloader{h},
		Source:     inner.Coordinator().Source,
	}
	for _, p := range h.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			h.logger.Error("plugin initialization failed", log.String("plugin", p.Name()), log.Err(err))
			cancel()
			_ = h.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		h.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	h.lifecycle.Go(func() {
		if err := h.lifecycle.TransitionTo(app.StateRunning, "host starting"); err != nil {
			h.logger.Error("failed to transition to running", log.Err(err))
			return
		}
		if err := inner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Error("host error", log.Err(err))
			_ = h.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})
	return nil
}

// Stop shuts the host down and unloads the model.
// Waits up to 30 seconds before forcing shutdown.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (h *Host) Stop() error {
	h.mu.Lock()
	if !h.lifecycle.CanStop() {
		h.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := h.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		h.mu.Unlock()
		return err
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()

	err := h.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	shutdownCtx := context.Background()
	for i := len(h.plugins) - 1; i >= 0; i-- {
		p := h.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			h.logger.Error("plugin shutdown failed", log.String("plugin", p.Name()), log.Err(shutdownErr))
		}
	}

	if err != nil {
		_ = h.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = h.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current run state.
// Safe to call concurrently from any goroutine.
func (h *Host) Status() State {
	return convertState(h.lifecycle.State())
}

// Addr returns the bound HTTP address, or nil when not listening.
func (h *Host) Addr() net.Addr {
	inner, err := h.running()
	if err != nil {
		return nil
	}
	return inner.Addr()
}

// Initialize starts the model load if needed and waits for its outcome.
func (h *Host) Initialize(ctx context.Context) error {
	inner, err := h.running()
	if err != nil {
		return err
	}
	return inner.Coordinator().Initialize(ctx)
}

// ModelStatus returns the model status as a client would see it.
func (h *Host) ModelStatus() (transport.Response, error) {
	inner, err := h.running()
	if err != nil {
		return transport.Response{}, err
	}
	return inner.Coordinator().Status(), nil
}

// Classify labels text. It fails with ErrNotReady until the model is ready.
func (h *Host) Classify(ctx context.Context, text string) (*transport.Classification, error) {
	if err := client.ValidateText(text); err != nil {
		return nil, err
	}
	inner, err := h.running()
	if err != nil {
		return nil, err
	}
	return inner.Coordinator().Classify(ctx, text)
}

// Reset discards the current model state and starts a new load.
func (h *Host) Reset(ctx context.Context) (transport.Response, error) {
	inner, err := h.running()
	if err != nil {
		return transport.Response{}, err
	}
	return inner.Coordinator().Reset(ctx), nil
}

// Reload points the host at a new model source and reloads it.
func (h *Host) Reload(ctx context.Context, source string) error {
	inner, err := h.running()
	if err != nil {
		return err
	}
	return inner.Reload(ctx, source)
}

func (h *Host) running() (*app.Host, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.inner == nil {
		return nil, domain.ErrNotRunning
	}
	if s := h.lifecycle.State(); s != app.StateRunning && s != app.StateStarting {
		return nil, domain.ErrNotRunning
	}
	return h.inner, nil
}

func (h *Host) hostConfig() app.HostConfig {
	return app.HostConfig{
		Source:         h.config.ModelURL,
		Listen:         h.config.Listen,
		RequestTimeout: h.config.RequestTimeout,
		Policy: retry.Policy{
			MaxAttempts: h.config.RetryAttempts,
			Backoff:     h.config.RetryBackoff,
			Settle:      h.config.SettleDelay,
		},
		InitSettle:       h.config.InitSettle,
		BusyRecheckDelay: h.config.BusyRecheckDelay,
		BusyRechecks:     h.config.BusyRechecks,
		AutoInit:         !h.config.Lazy,
	}
}

func (h *Host) engineFactory() app.EngineFactory {
	switch {
	case h.opts.newEngine != nil:
		return app.EngineFactory(h.opts.newEngine)
	case h.config.Simulate:
		return func() engine.Engine {
			return engine.NewSimulated(simulatedSteps, simulatedStepDelay)
		}
	default:
		httpClient, cacheDir, inferenceURL, logger := h.opts.httpClient, h.config.CacheDir, h.config.InferenceURL, h.logger
		return func() engine.Engine {
			return engine.NewHTTPEngine(httpClient, cacheDir, inferenceURL, logger)
		}
	}
}

// reloader hands plugins the Reload method only.
type reloader struct{ h *Host }

func (r reloader) Reload(ctx context.Context, source string) error {
	return r.h.Reload(ctx, source)
}

// serviceEvents adapts EventHandler to the service lifecycle.
type serviceEvents struct {
	handler EventHandler
}

func (e *serviceEvents) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

// modelEvents adapts EventHandler to the model lifecycle.
type modelEvents struct {
	handler EventHandler
}

func (e *modelEvents) OnStateChange(previous lifecycle.State, current lifecycle.Snapshot) {
	e.handler.OnModelChange(ModelEvent{
		Previous: previous.String(),
		Current:  current.State.String(),
		Progress: current.Progress,
		Reason:   current.Reason,
		Attempt:  current.AttemptID,
		At:       time.Now(),
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"log":       {log.Version, log.MinCompatibleVersion},
		"retry":     {retry.Version, retry.MinCompatibleVersion},
		"transport": {transport.Version, transport.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}

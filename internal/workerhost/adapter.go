package workerhost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/retry"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// DefaultInitSettle is the wait after creating a worker host before it is
// sent its first request.
const DefaultInitSettle = 200 * time.Millisecond

// Router delivers requests between contexts. *transport.Bus implements it.
type Router interface {
	Request(ctx context.Context, from, to transport.Role, msg transport.Message) (transport.Response, error)
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	// From is the role requests are sent as.
	From transport.Role
	// Policy is the retry policy for worker requests.
	Policy retry.Policy
	// InitSettle is the wait after a worker host is created.
	InitSettle time.Duration
}

// DefaultAdapterConfig returns the coordinator's adapter settings.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		From:       transport.RoleCoordinator,
		Policy:     retry.DefaultPolicy(),
		InitSettle: DefaultInitSettle,
	}
}

// creation is one in-flight worker host creation shared by its callers.
type creation struct {
	done chan struct{}
	err  error
}

// Adapter hides worker host creation and transport retries from the
// coordinator.
type Adapter struct {
	router   Router
	launcher Launcher
	cfg      AdapterConfig
	logger   log.Logger

	mu       sync.Mutex
	ready    bool
	creating *creation
}

// NewAdapter creates an adapter. The worker host is not created until the
// first request.
func NewAdapter(router Router, launcher Launcher, cfg AdapterConfig, logger log.Logger) *Adapter {
	if cfg.From == "" {
		cfg.From = transport.RoleCoordinator
	}
	return &Adapter{
		router:   router,
		launcher: launcher,
		cfg:      cfg,
		logger:   log.OrNoop(logger).With(log.String("component", "workerhost-adapter")),
	}
}

// Ready reports the cached readiness flag.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Invalidate clears the readiness flag so the next request re-checks the
// worker host.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	a.ready = false
	a.mu.Unlock()
}

// EnsureExists makes sure a worker host exists. Concurrent callers share one
// creation; a failed creation is not remembered.
func (a *Adapter) EnsureExists(ctx context.Context) error {
	a.mu.Lock()
	if a.ready {
		a.mu.Unlock()
		return nil
	}
	if c := a.creating; c != nil {
		a.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &creation{done: make(chan struct{})}
	a.creating = c
	a.mu.Unlock()

	c.err = a.create(ctx)

	a.mu.Lock()
	a.ready = c.err == nil
	a.creating = nil
	a.mu.Unlock()
	close(c.done)

	return c.err
}

func (a *Adapter) create(ctx context.Context) error {
	if a.launcher.Exists() {
		return nil
	}

	a.logger.Info("creating worker host")
	if err := a.launcher.Launch(ctx); err != nil {
		a.logger.Error("failed to create worker host", log.Err(err))
		return fmt.Errorf("create worker host: %w", err)
	}
	return retry.Sleep(ctx, a.cfg.InitSettle)
}

// request sends msg with the retry policy. A transport failure clears
// readiness; the next attempt re-ensures the worker host first.
func (a *Adapter) request(ctx context.Context, msg transport.Message) (transport.Response, error) {
	var resp transport.Response

	ensure := func(ctx context.Context, n int) error {
		return a.EnsureExists(ctx)
	}
	send := func(ctx context.Context, n int) error {
		if err := a.EnsureExists(ctx); err != nil {
			return err
		}
		r, err := a.router.Request(ctx, a.cfg.From, transport.RoleWorker, msg)
		if err == nil {
			resp = r
			return nil
		}
		if errors.Is(err, transport.ErrUnreachable) {
			a.Invalidate()
			a.logger.Warn("worker host unreachable",
				log.Stringer("type", msg.Type),
				log.Int("attempt", n),
				log.Err(err),
			)
			return err
		}
		return retry.Permanent(err)
	}

	if err := retry.Do(ctx, a.cfg.Policy, ensure, send); err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return transport.Response{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
		return transport.Response{}, err
	}
	return resp, nil
}

// Load asks the worker host to load the model at source. It returns
// domain.ErrBusy when a load is already running and a *domain.ModelLoadError
// when the worker host reports a failure.
func (a *Adapter) Load(ctx context.Context, source string) error {
	resp, err := a.request(ctx, transport.Message{Type: transport.TypeLoad, Source: source})
	if err != nil {
		return err
	}
	if resp.Busy {
		return domain.ErrBusy
	}
	if !resp.Success {
		return &domain.ModelLoadError{Reason: resp.Error}
	}
	return nil
}

// Classify forwards text to the worker host and relays its result or error.
func (a *Adapter) Classify(ctx context.Context, text string) (*transport.Classification, error) {
	resp, err := a.request(ctx, transport.Message{Type: transport.TypeClassify, Text: text})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.FromReason(resp.Error)
	}
	if resp.Result == nil {
		return nil, &domain.RemoteError{Message: "worker host returned no result"}
	}
	return resp.Result, nil
}

// Status asks the worker host for its load flags.
func (a *Adapter) Status(ctx context.Context) (transport.Response, error) {
	return a.request(ctx, transport.Message{Type: transport.TypeStatus})
}

// Probe asks an existing worker host for its status once. It never creates
// the worker host and never retries.
func (a *Adapter) Probe(ctx context.Context) (transport.Response, error) {
	if !a.launcher.Exists() {
		a.Invalidate()
		return transport.Response{}, fmt.Errorf("%w: %s", transport.ErrUnreachable, transport.RoleWorker)
	}
	resp, err := a.router.Request(ctx, a.cfg.From, transport.RoleWorker, transport.Message{Type: transport.TypeStatus})
	if err != nil {
		if errors.Is(err, transport.ErrUnreachable) {
			a.Invalidate()
		}
		return transport.Response{}, err
	}
	return resp, nil
}

// Package coordinator owns the model lifecycle. It runs the single-flight
// initialization, forwards work to the worker host and tells clients about
// every transition.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/lifecycle"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/retry"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// Defaults for Config.
const (
	DefaultBusyRecheckDelay = time.Second
	DefaultBusyRechecks     = 1
)

// Worker is the coordinator's view of the worker host.
// *workerhost.Adapter implements it.
type Worker interface {
	EnsureExists(ctx context.Context) error
	Load(ctx context.Context, source string) error
	Classify(ctx context.Context, text string) (*transport.Classification, error)
	Status(ctx context.Context) (transport.Response, error)
	Probe(ctx context.Context) (transport.Response, error)
	Invalidate()
}

// Broadcaster fans messages out to clients. *transport.Bus implements it.
type Broadcaster interface {
	Broadcast(from transport.Role, msg transport.Message) int
}

// Config configures a Coordinator.
type Config struct {
	// Source is the model location passed to the worker host.
	Source string

	// BusyRecheckDelay is the wait before asking a busy worker host for
	// its status.
	BusyRecheckDelay time.Duration

	// BusyRechecks is how many status checks are made after a busy reply.
	// One matches the documented behaviour; more is a deliberate deviation
	// that narrows the race where the worker finishes just after the check.
	BusyRechecks int
}

// DefaultConfig returns the documented timings for source.
func DefaultConfig(source string) Config {
	return Config{
		Source:           source,
		BusyRecheckDelay: DefaultBusyRecheckDelay,
		BusyRechecks:     DefaultBusyRechecks,
	}
}

// Coordinator is the coordinator context.
type Coordinator struct {
	machine  *lifecycle.Machine
	worker   Worker
	out      Broadcaster
	emitters []lifecycle.EventEmitter
	logger   log.Logger
	routes   map[route]transport.HandlerFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	cfg Config
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEmitter adds a listener for lifecycle transitions.
func WithEmitter(e lifecycle.EventEmitter) Option {
	return func(c *Coordinator) {
		c.emitters = append(c.emitters, e)
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = log.OrNoop(l)
	}
}

// New creates a coordinator in NotLoaded. Nothing is loaded until
// Initialize, Begin or an INIT message.
func New(cfg Config, worker Worker, out Broadcaster, opts ...Option) *Coordinator {
	if cfg.BusyRechecks < 1 {
		cfg.BusyRechecks = DefaultBusyRechecks
	}

	c := &Coordinator{
		worker: worker,
		out:    out,
		cfg:    cfg,
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("role", transport.RoleCoordinator.String()))
	c.machine = lifecycle.NewMachine(c.logger, c)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.routes = c.buildRoutes()
	return c
}

// Machine exposes the lifecycle machine for inspection.
func (c *Coordinator) Machine() *lifecycle.Machine { return c.machine }

// Source returns the configured model source.
func (c *Coordinator) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Source
}

// Initialize loads the model, joining an attempt already in flight. It
// returns nil at once when Ready and the remembered failure when Failed;
// only Reset starts a new attempt after a failure.
func (c *Coordinator) Initialize(ctx context.Context) error {
	return c.Begin().Wait(ctx)
}

// Begin starts an attempt when none exists and returns the current one
// without waiting.
func (c *Coordinator) Begin() *lifecycle.Attempt {
	a, started := c.machine.Begin()
	if started {
		go c.run(a)
	}
	return a
}

func (c *Coordinator) run(a *lifecycle.Attempt) {
	start := time.Now()
	err := c.load(c.ctx)
	if err != nil {
		c.worker.Invalidate()
	}
	if !c.machine.Complete(a.ID(), err) {
		c.logger.Debug("attempt already settled",
			log.String("attempt", a.ID()),
			log.Err(err),
		)
		return
	}
	if err != nil {
		c.logger.Error("model initialization failed",
			log.String("attempt", a.ID()),
			log.Duration("elapsed", time.Since(start)),
			log.Err(err),
		)
		return
	}
	c.logger.Info("model initialization complete",
		log.String("attempt", a.ID()),
		log.Duration("elapsed", time.Since(start)),
	)
}

func (c *Coordinator) load(ctx context.Context) error {
	if err := c.worker.EnsureExists(ctx); err != nil {
		return err
	}

	err := c.worker.Load(ctx, c.Source())
	if errors.Is(err, domain.ErrBusy) {
		return c.reconcileBusy(ctx)
	}
	return err
}

// reconcileBusy treats a busy worker host as success if it reports loaded
// after the recheck delay.
func (c *Coordinator) reconcileBusy(ctx context.Context) error {
	c.mu.Lock()
	delay, checks := c.cfg.BusyRecheckDelay, c.cfg.BusyRechecks
	c.mu.Unlock()

	c.logger.Warn("worker host busy, rechecking", log.Duration("delay", delay), log.Int("checks", checks))

	for i := 0; i < checks; i++ {
		if err := retry.Sleep(ctx, delay); err != nil {
			return err
		}
		resp, err := c.worker.Status(ctx)
		if err != nil {
			c.logger.Warn("busy recheck failed", log.Err(err))
			continue
		}
		if resp.Loaded {
			return nil
		}
	}
	return domain.ErrBusyNotConverged
}

// Status is a pure read of the lifecycle state.
func (c *Coordinator) Status() transport.Response {
	snap := c.machine.Snapshot()
	resp := transport.Response{
		Success:  true,
		Loaded:   snap.Loaded(),
		Loading:  snap.Loading(),
		Progress: snap.Progress,
		Attempt:  snap.AttemptID,
	}
	if snap.State == lifecycle.StateFailed {
		resp.Error = snap.Reason
	}
	return resp
}

// Classify forwards text to the worker host once the model is ready. Before
// that it probes the worker host once, which covers a ready signal that has
// not arrived yet; otherwise it fails with domain.ErrNotReady.
func (c *Coordinator) Classify(ctx context.Context, text string) (*transport.Classification, error) {
	snap := c.machine.Snapshot()
	if snap.State != lifecycle.StateReady {
		if !c.recheckReady(ctx, snap) {
			return nil, domain.ErrNotReady
		}
	}
	return c.worker.Classify(ctx, text)
}

func (c *Coordinator) recheckReady(ctx context.Context, snap lifecycle.Snapshot) bool {
	if snap.State != lifecycle.StateLoading {
		return false
	}
	resp, err := c.worker.Probe(ctx)
	if err != nil || !resp.Loaded {
		return false
	}
	c.logger.Info("worker host already loaded, promoting attempt", log.String("attempt", snap.AttemptID))
	c.machine.Complete(snap.AttemptID, nil)
	return c.machine.Snapshot().State == lifecycle.StateReady
}

// Reset discards the current attempt and outcome and starts a new attempt.
func (c *Coordinator) Reset(ctx context.Context) transport.Response {
	c.machine.Reset("reset requested")
	c.worker.Invalidate()
	c.Begin()
	return c.Status()
}

// Reload switches to a new model source and resets.
func (c *Coordinator) Reload(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("%w: empty model source", domain.ErrInvalidConfig)
	}
	c.mu.Lock()
	prev := c.cfg.Source
	c.cfg.Source = source
	c.mu.Unlock()

	c.logger.Info("model source changed", log.String("from", prev), log.String("to", source))
	c.Reset(ctx)
	return nil
}

// Close stops the attempt in flight. The coordinator must not be used after.
func (c *Coordinator) Close() {
	c.cancel()
	c.machine.Reset("shutdown")
}

// OnStateChange implements lifecycle.EventEmitter. Only accepted transitions
// reach it, so each terminal signal is broadcast once per attempt.
func (c *Coordinator) OnStateChange(previous lifecycle.State, current lifecycle.Snapshot) {
	switch current.State {
	case lifecycle.StateReady:
		c.broadcast(transport.Message{Type: transport.TypeReady})
	case lifecycle.StateFailed:
		c.broadcast(transport.Message{Type: transport.TypeError, Reason: current.Reason})
	}
	for _, e := range c.emitters {
		e.OnStateChange(previous, current)
	}
}

func (c *Coordinator) broadcast(msg transport.Message) {
	if c.out == nil {
		return
	}
	n := c.out.Broadcast(transport.RoleCoordinator, msg)
	c.logger.Debug("broadcast", log.Stringer("type", msg.Type), log.Int("delivered", n))
}

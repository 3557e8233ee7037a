package app

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/modelhost/internal/adapters/http"
	"github.com/bft-labs/modelhost/internal/coordinator"
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/internal/ports"
	"github.com/bft-labs/modelhost/internal/workerhost"
	"github.com/bft-labs/modelhost/pkg/lifecycle"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/retry"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// HostConfig contains configuration for the host service.
type HostConfig struct {
	// Source is the model location.
	Source string

	// Listen is the address the HTTP server binds. Empty disables it.
	Listen         string
	RequestTimeout time.Duration

	Policy           retry.Policy
	InitSettle       time.Duration
	BusyRecheckDelay time.Duration
	BusyRechecks     int

	// AutoInit starts loading as soon as the service runs, the way a
	// freshly installed or restarted host would.
	AutoInit bool
}

// EngineFactory builds the engine for a new worker host.
type EngineFactory func() engine.Engine

// Host wires the coordinator, the worker host and the HTTP server on one
// in-process bus.
type Host struct {
	config   HostConfig
	bus      *transport.Bus
	launcher *workerhost.BusLauncher
	coord    *coordinator.Coordinator
	server   *http.Server
	logger   log.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewHost builds the service. repo may be nil to skip status recording.
func NewHost(
	config HostConfig,
	newEngine EngineFactory,
	repo ports.StatusRepository,
	logger log.Logger,
	emitters ...lifecycle.EventEmitter,
) (*Host, error) {
	logger = log.OrNoop(logger)
	if config.Policy.MaxAttempts == 0 {
		config.Policy = retry.DefaultPolicy()
	}

	bus := transport.NewBus(logger)
	launcher := workerhost.NewBusLauncher(bus, newEngine, logger)
	adapter := workerhost.NewAdapter(bus, launcher, workerhost.AdapterConfig{
		From:       transport.RoleCoordinator,
		Policy:     config.Policy,
		InitSettle: config.InitSettle,
	}, logger)

	opts := []coordinator.Option{coordinator.WithLogger(logger)}
	var recorder *StatusRecorder
	if repo != nil {
		recorder = NewStatusRecorder(repo, nil, logger)
		opts = append(opts, coordinator.WithEmitter(recorder))
	}
	for _, e := range emitters {
		opts = append(opts, coordinator.WithEmitter(e))
	}

	coord := coordinator.New(coordinator.Config{
		Source:           config.Source,
		BusyRecheckDelay: config.BusyRecheckDelay,
		BusyRechecks:     config.BusyRechecks,
	}, adapter, bus, opts...)
	if recorder != nil {
		recorder.source = coord.Source
	}

	if _, err := bus.Register(transport.RoleCoordinator, coord); err != nil {
		return nil, err
	}

	h := &Host{
		config:   config,
		bus:      bus,
		launcher: launcher,
		coord:    coord,
		logger:   logger,
	}
	if config.Listen != "" {
		h.server = http.NewServer(bus, config.RequestTimeout, logger)
	}
	return h, nil
}

// Bus returns the bus in-process clients attach to.
func (h *Host) Bus() *transport.Bus { return h.bus }

// Coordinator returns the coordinator.
func (h *Host) Coordinator() *coordinator.Coordinator { return h.coord }

// Addr returns the bound HTTP address, or nil before Run binds it.
func (h *Host) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Reload points the host at a new model source and reloads it.
func (h *Host) Reload(ctx context.Context, source string) error {
	return h.coord.Reload(ctx, source)
}

// Run serves until ctx is canceled, then tears down the worker host and
// the HTTP server. It returns ctx.Err() on a normal shutdown.
func (h *Host) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	if h.server != nil {
		ln, err := net.Listen("tcp", h.config.Listen)
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.addr = ln.Addr()
		h.mu.Unlock()
		go func() { serveErr <- h.server.Serve(ln) }()
	}

	if h.config.AutoInit {
		h.coord.Begin()
	}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-serveErr:
		if err == nil {
			err = errors.New("http server stopped")
		}
		h.logger.Error("http server failed", log.Err(err))
	}

	h.shutdown()
	return err
}

func (h *Host) shutdown() {
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Warn("http shutdown", log.Err(err))
		}
		cancel()
	}
	h.coord.Close()
	h.launcher.Destroy()
}

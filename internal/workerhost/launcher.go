package workerhost

import (
	"context"
	"sync"

	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// Launcher creates the worker host context.
type Launcher interface {
	// Exists reports whether a worker host is reachable.
	Exists() bool
	// Launch creates a worker host. It is a no-op when one exists.
	Launch(ctx context.Context) error
}

// BusLauncher runs the worker host in process on a transport.Bus.
type BusLauncher struct {
	bus       *transport.Bus
	newEngine func() engine.Engine
	logger    log.Logger

	mu       sync.Mutex
	host     *Host
	endpoint *transport.Endpoint
	launches int
}

// NewBusLauncher creates a launcher that builds a fresh engine for every
// worker host it creates.
func NewBusLauncher(bus *transport.Bus, newEngine func() engine.Engine, logger log.Logger) *BusLauncher {
	return &BusLauncher{
		bus:       bus,
		newEngine: newEngine,
		logger:    log.OrNoop(logger),
	}
}

// Exists implements Launcher.
func (l *BusLauncher) Exists() bool {
	return l.bus.Has(transport.RoleWorker)
}

// Launch implements Launcher.
func (l *BusLauncher) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bus.Has(transport.RoleWorker) {
		return nil
	}

	host := NewHost(l.newEngine(), l.logger)
	ep, err := l.bus.Register(transport.RoleWorker, host)
	if err != nil {
		return err
	}
	host.SetNotifier(ep)

	l.host = host
	l.endpoint = ep
	l.launches++
	l.logger.Info("worker host created", log.Int("launches", l.launches))
	return nil
}

// Destroy tears the worker host down, as the environment may do at any
// time. Requests in flight fail with transport.ErrUnreachable.
func (l *BusLauncher) Destroy() {
	l.mu.Lock()
	host, ep := l.host, l.endpoint
	l.host, l.endpoint = nil, nil
	l.mu.Unlock()

	if ep == nil {
		return
	}
	ep.Close()
	if err := host.Close(); err != nil {
		l.logger.Warn("failed to close worker host", log.Err(err))
	}
	l.logger.Info("worker host destroyed")
}

// Launches returns how many worker hosts were created.
func (l *BusLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

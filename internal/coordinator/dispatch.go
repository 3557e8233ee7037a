package coordinator

import (
	"context"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/transport"
)

type route struct {
	from transport.Role
	typ  transport.Type
}

func (c *Coordinator) buildRoutes() map[route]transport.HandlerFunc {
	return map[route]transport.HandlerFunc{
		{transport.RoleClient, transport.TypeInit}:     c.handleInit,
		{transport.RoleClient, transport.TypeStatus}:   c.handleStatus,
		{transport.RoleClient, transport.TypeClassify}: c.handleClassify,
		{transport.RoleClient, transport.TypeReset}:    c.handleReset,

		{transport.RoleWorker, transport.TypeProgress}: c.handleWorkerProgress,
		{transport.RoleWorker, transport.TypeReady}:    c.handleWorkerReady,
		{transport.RoleWorker, transport.TypeError}:    c.handleWorkerError,
	}
}

// Handle implements transport.Handler.
func (c *Coordinator) Handle(ctx context.Context, from transport.Role, msg transport.Message) (transport.Response, error) {
	h, ok := c.routes[route{from, msg.Type}]
	if !ok {
		c.logger.Warn("unhandled message", log.Stringer("from", from), log.Stringer("type", msg.Type))
		return transport.Response{}, transport.ErrUnhandled
	}
	return h(ctx, from, msg)
}

func (c *Coordinator) handleInit(ctx context.Context, _ transport.Role, _ transport.Message) (transport.Response, error) {
	c.Begin()
	return c.Status(), nil
}

func (c *Coordinator) handleStatus(ctx context.Context, _ transport.Role, _ transport.Message) (transport.Response, error) {
	return c.Status(), nil
}

func (c *Coordinator) handleClassify(ctx context.Context, _ transport.Role, msg transport.Message) (transport.Response, error) {
	result, err := c.Classify(ctx, msg.Text)
	if err != nil {
		return transport.Failure(err.Error()), nil
	}
	return transport.Response{Success: true, Loaded: true, Progress: 100, Result: result}, nil
}

func (c *Coordinator) handleReset(ctx context.Context, _ transport.Role, _ transport.Message) (transport.Response, error) {
	return c.Reset(ctx), nil
}

// stale reports whether a worker event belongs to a load of another source,
// one started before a Reload. Events without a source are accepted.
func (c *Coordinator) stale(msg transport.Message) bool {
	if msg.Source == "" || msg.Source == c.Source() {
		return false
	}
	c.logger.Debug("ignoring event for another source",
		log.Stringer("type", msg.Type),
		log.String("source", msg.Source),
	)
	return true
}

func (c *Coordinator) handleWorkerProgress(ctx context.Context, _ transport.Role, msg transport.Message) (transport.Response, error) {
	a := c.machine.Pending()
	if a == nil || c.stale(msg) {
		return transport.OK(), nil
	}
	if c.machine.Advance(a.ID(), msg.Progress) {
		snap := c.machine.Snapshot()
		if snap.AttemptID == a.ID() {
			c.broadcast(transport.Message{Type: transport.TypeProgress, Progress: snap.Progress})
		}
	}
	return transport.OK(), nil
}

func (c *Coordinator) handleWorkerReady(ctx context.Context, _ transport.Role, msg transport.Message) (transport.Response, error) {
	if c.stale(msg) {
		return transport.OK(), nil
	}
	if a := c.machine.Pending(); a != nil {
		c.machine.Complete(a.ID(), nil)
	}
	return transport.OK(), nil
}

func (c *Coordinator) handleWorkerError(ctx context.Context, _ transport.Role, msg transport.Message) (transport.Response, error) {
	if c.stale(msg) {
		return transport.OK(), nil
	}
	c.worker.Invalidate()
	if a := c.machine.Pending(); a != nil {
		c.machine.Complete(a.ID(), &domain.ModelLoadError{Reason: msg.Reason})
	}
	return transport.OK(), nil
}

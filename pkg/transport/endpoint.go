package transport

import (
	"context"
	"sync"
	"time"
)

// notifyTimeout bounds a fire-and-forget delivery.
const notifyTimeout = 5 * time.Second

// Endpoint is a context's presence on the bus.
type Endpoint struct {
	bus     *Bus
	role    Role
	handler Handler

	closeOnce sync.Once
	closed    chan struct{}
}

// Role returns the role the endpoint was registered under.
func (e *Endpoint) Role() Role { return e.role }

// Request sends msg to another context and waits for the response.
func (e *Endpoint) Request(ctx context.Context, to Role, msg Message) (Response, error) {
	return e.bus.Request(ctx, e.role, to, msg)
}

// Notify sends msg to another context without waiting. Delivery failures
// are dropped.
func (e *Endpoint) Notify(to Role, msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_, _ = e.bus.Request(ctx, e.role, to, msg)
	}()
}

// Broadcast sends msg to every subscriber of other roles.
func (e *Endpoint) Broadcast(msg Message) int {
	return e.bus.Broadcast(e.role, msg)
}

// Done is closed when the endpoint is closed.
func (e *Endpoint) Done() <-chan struct{} { return e.closed }

// Close removes the endpoint from the bus. Requests in flight to it fail
// with ErrUnreachable.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.bus.unregister(e)
		close(e.closed)
	})
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/modelhost/pkg/log"
)

// Transport errors.
var (
	// ErrUnreachable means the destination context does not exist or went
	// away before answering.
	ErrUnreachable = errors.New("transport: destination unreachable")

	// ErrRoleTaken is returned by Register when the role already has an endpoint.
	ErrRoleTaken = errors.New("transport: role already registered")

	// ErrUnhandled is returned by a handler that has no route for a message.
	ErrUnhandled = errors.New("transport: unhandled message")
)

// DefaultSubscriberBuffer is the channel size used by Subscribe.
const DefaultSubscriberBuffer = 64

// Handler serves requests addressed to an endpoint.
type Handler interface {
	Handle(ctx context.Context, from Role, msg Message) (Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, from Role, msg Message) (Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, from Role, msg Message) (Response, error) {
	return f(ctx, from, msg)
}

// Bus connects endpoints and broadcast subscribers in one process.
type Bus struct {
	mu          sync.RWMutex
	endpoints   map[Role]*Endpoint
	subscribers map[string]*Subscription
	logger      log.Logger
}

// NewBus creates an empty bus.
func NewBus(logger log.Logger) *Bus {
	return &Bus{
		endpoints:   make(map[Role]*Endpoint),
		subscribers: make(map[string]*Subscription),
		logger:      log.OrNoop(logger).With(log.String("component", "bus")),
	}
}

// Register creates the endpoint for role.
func (b *Bus) Register(role Role, h Handler) (*Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.endpoints[role]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleTaken, role)
	}
	ep := &Endpoint{
		bus:     b,
		role:    role,
		handler: h,
		closed:  make(chan struct{}),
	}
	b.endpoints[role] = ep
	b.logger.Debug("endpoint registered", log.Stringer("role", role))
	return ep, nil
}

// Has reports whether an endpoint is registered for role.
func (b *Bus) Has(role Role) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.endpoints[role]
	return ok
}

// Request sends msg to the endpoint registered for to and waits for its
// response. The handler runs in its own goroutine; if the destination closes
// before answering the request fails with ErrUnreachable.
func (b *Bus) Request(ctx context.Context, from, to Role, msg Message) (Response, error) {
	b.mu.RLock()
	ep, ok := b.endpoints[to]
	b.mu.RUnlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnreachable, to)
	}

	type result struct {
		resp Response
		err  error
	}
	out := make(chan result, 1)
	go func() {
		resp, err := ep.handler.Handle(ctx, from, msg)
		out <- result{resp, err}
	}()

	select {
	case r := <-out:
		return r.resp, r.err
	case <-ep.closed:
		return Response{}, fmt.Errorf("%w: %s closed", ErrUnreachable, to)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Subscribe registers a broadcast listener for role. Messages are dropped
// when the buffer is full.
func (b *Bus) Subscribe(role Role, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	s := &Subscription{
		id:   uuid.NewString(),
		role: role,
		ch:   make(chan Message, buffer),
		bus:  b,
	}
	b.mu.Lock()
	b.subscribers[s.id] = s
	b.mu.Unlock()
	return s
}

// Broadcast delivers msg to every subscriber not owned by from and returns
// how many accepted it.
func (b *Bus) Broadcast(from Role, msg Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, s := range b.subscribers {
		if s.role == from {
			continue
		}
		select {
		case s.ch <- msg:
			delivered++
		default:
			b.logger.Debug("broadcast dropped",
				log.String("subscriber", s.id),
				log.Stringer("type", msg.Type),
			)
		}
	}
	return delivered
}

func (b *Bus) unregister(ep *Endpoint) {
	b.mu.Lock()
	if cur, ok := b.endpoints[ep.role]; ok && cur == ep {
		delete(b.endpoints, ep.role)
	}
	b.mu.Unlock()
	b.logger.Debug("endpoint closed", log.Stringer("role", ep.role))
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s.id]; ok {
		delete(b.subscribers, s.id)
		close(s.ch)
	}
}

// Subscription receives broadcasts until Close.
type Subscription struct {
	id   string
	role Role
	ch   chan Message
	bus  *Bus
	once sync.Once
}

// ID identifies the subscription.
func (s *Subscription) ID() string { return s.id }

// C is closed after Close.
func (s *Subscription) C() <-chan Message { return s.ch }

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.unsubscribe(s) })
}

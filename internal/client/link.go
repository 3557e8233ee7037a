package client

import (
	"context"

	"github.com/bft-labs/modelhost/pkg/transport"
)

// Events is a stream of coordinator broadcasts.
type Events interface {
	C() <-chan transport.Message
	Close()
}

// Link reaches the coordinator.
type Link interface {
	// Request sends msg to the coordinator and returns its response.
	Request(ctx context.Context, msg transport.Message) (transport.Response, error)
	// Subscribe starts receiving broadcasts.
	Subscribe(ctx context.Context) (Events, error)
}

// BusLink is a Link over an in-process transport.Bus.
type BusLink struct {
	bus    *transport.Bus
	buffer int
}

// NewBusLink creates a link that talks to the coordinator on bus.
func NewBusLink(bus *transport.Bus) *BusLink {
	return &BusLink{bus: bus, buffer: transport.DefaultSubscriberBuffer}
}

// Request implements Link.
func (l *BusLink) Request(ctx context.Context, msg transport.Message) (transport.Response, error) {
	return l.bus.Request(ctx, transport.RoleClient, transport.RoleCoordinator, msg)
}

// Subscribe implements Link.
func (l *BusLink) Subscribe(ctx context.Context) (Events, error) {
	return l.bus.Subscribe(transport.RoleClient, l.buffer), nil
}

// Package transport carries messages between isolated modelhost contexts.
//
// Every context (coordinator, worker host, client) talks to the others only
// through a Bus. Two primitives are offered:
//
//   - Request: point-to-point request/response. It fails with ErrUnreachable
//     when no endpoint is registered for the destination role, or when the
//     destination is torn down before it answers. There is no delivery
//     guarantee and no retry at this layer.
//   - Broadcast: fire-and-forget notification to every subscriber except the
//     sender. Delivery is best effort, slow subscribers lose messages and no
//     error is ever reported.
//
// A context registers itself with Register and disappears with
// Endpoint.Close:
//
//	ep, err := bus.Register(transport.RoleWorker, handler)
//	defer ep.Close()
//	resp, err := ep.Request(ctx, transport.RoleCoordinator, transport.Message{Type: transport.TypeStatus})
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package transport

// Package http exposes the coordinator over HTTP and WebSocket and provides
// the matching remote client link.
//
// POST /v1/messages carries one transport.Message and returns its
// transport.Response. GET /v1/events upgrades to a WebSocket that streams
// coordinator broadcasts as JSON text frames. Delivery follows the bus:
// best effort, dropped for slow readers.
package http

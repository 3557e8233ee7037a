package modelhost

import (
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/internal/ports"
	"github.com/bft-labs/modelhost/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Logger is the interface for structured logging.
type Logger = log.Logger

// Engine loads and runs the model. Supply one with WithEngine to replace
// the built-in engines.
type Engine = engine.Engine

// Option configures optional behavior of a Host.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	newEngine    func() Engine
}

// WithHTTPClient sets the client used to download weights and call the
// inference server.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for host events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the host starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithEngine sets the factory for the engine each new worker host uses.
func WithEngine(newEngine func() Engine) Option {
	return func(o *options) {
		o.newEngine = newEngine
	}
}

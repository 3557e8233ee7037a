package modelhost

import (
	"context"

	"github.com/bft-labs/modelhost/pkg/log"
)

// Reloader points a running host at a new model source.
type Reloader interface {
	Reload(ctx context.Context, source string) error
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	ModelURL   string
	CacheDir   string
	StateDir   string
	ConfigPath string
	Logger     log.Logger
	Reloader   Reloader

	// Source reports the model source in use, which changes on reload.
	Source func() string
}

// Plugin extends a Host. Plugins are initialized in registration order and
// shut down in reverse order.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

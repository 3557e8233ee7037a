// Package modelhost provides an embeddable host for a single-flight model
// load.
//
// A host runs a coordinator and a worker host in process. The coordinator
// owns the load lifecycle: however many callers ask for the model, one load
// runs, and every caller observes the same outcome. Clients attach over the
// optional HTTP server or through [Host.Classify] and friends directly.
//
// # Basic Usage
//
//	cfg := modelhost.Config{
//	    ModelURL: "https://example.com/model.gguf",
//	    Listen:   "127.0.0.1:7733",
//	}
//
//	h, err := modelhost.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop()
//
//	if err := h.Initialize(ctx); err != nil {
//	    log.Printf("model failed to load: %v", err)
//	}
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for defaults) and
// pass it with [WithEventHandler] to observe both the service state and the
// model lifecycle.
//
// # Plugins
//
// A [Plugin] is initialized on Start and shut down on Stop. Plugins receive a
// [Reloader] that can point the host at a new model source.
package modelhost

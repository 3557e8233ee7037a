// Package workerhost contains the worker host context, which owns the model
// engine, and the adapter the coordinator uses to reach it.
package workerhost

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// progressLogStep is how often, in percent, load progress is logged.
const progressLogStep = 10

// Notifier sends fire-and-forget events to another context.
type Notifier interface {
	Notify(to transport.Role, msg transport.Message)
}

// Host is the worker host context. It answers LOAD, CLASSIFY and STATUS and
// reports PROGRESS, READY and ERROR to the coordinator.
type Host struct {
	engine engine.Engine
	logger log.Logger

	mu       sync.Mutex
	notifier Notifier
	loaded   bool
	loading  bool
	source   string
	target   string
	reported int
	logged   int
}

// NewHost creates a host around e.
func NewHost(e engine.Engine, logger log.Logger) *Host {
	return &Host{
		engine: e,
		logger: log.OrNoop(logger).With(log.String("role", transport.RoleWorker.String())),
	}
}

// SetNotifier sets where events are sent. Without one events are dropped.
func (h *Host) SetNotifier(n Notifier) {
	h.mu.Lock()
	h.notifier = n
	h.mu.Unlock()
}

// Handle implements transport.Handler.
func (h *Host) Handle(ctx context.Context, from transport.Role, msg transport.Message) (transport.Response, error) {
	switch msg.Type {
	case transport.TypeLoad:
		return h.load(ctx, msg.Source), nil
	case transport.TypeClassify:
		return h.classify(ctx, msg.Text), nil
	case transport.TypeStatus:
		loaded, loading := h.state()
		return transport.Response{Success: true, Loaded: loaded, Loading: loading}, nil
	default:
		return transport.Response{}, transport.ErrUnhandled
	}
}

func (h *Host) state() (loaded, loading bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded, h.loading
}

func (h *Host) load(ctx context.Context, source string) transport.Response {
	h.mu.Lock()
	if h.loading {
		h.mu.Unlock()
		return transport.Response{Busy: true, Loading: true, Error: domain.ErrBusy.Error()}
	}
	if h.loaded && h.source == source {
		h.mu.Unlock()
		return transport.Response{Success: true, Loaded: true}
	}
	if h.loaded {
		h.logger.Info("model source changed, unloading", log.String("from", h.source), log.String("to", source))
		if err := h.engine.Close(); err != nil {
			h.logger.Warn("failed to unload model", log.Err(err))
		}
		h.loaded = false
	}
	h.loading = true
	h.target = source
	h.reported = 0
	h.logged = 0
	h.mu.Unlock()

	h.logger.Info("loading model", log.String("source", source))

	// The load outlives the request that started it.
	err := h.engine.Load(context.WithoutCancel(ctx), source, h.progress)

	h.mu.Lock()
	h.loading = false
	if err == nil {
		h.loaded = true
		h.source = source
	}
	h.mu.Unlock()

	if err != nil {
		reason := err.Error()
		h.logger.Error("model load failed", log.Err(err))
		h.notify(transport.Message{Type: transport.TypeError, Reason: reason, Source: source})
		return transport.Failure(reason)
	}

	h.logger.Info("model ready", log.String("source", source))
	h.notify(transport.Message{Type: transport.TypeReady, Source: source})
	return transport.Response{Success: true, Loaded: true}
}

func (h *Host) progress(loaded, total int64) {
	pct, ok := engine.Percent(loaded, total)
	if !ok {
		return
	}

	h.mu.Lock()
	if pct <= h.reported {
		h.mu.Unlock()
		return
	}
	h.reported = pct
	source := h.target
	logIt := pct >= h.logged+progressLogStep
	if logIt {
		h.logged = pct - pct%progressLogStep
	}
	h.mu.Unlock()

	if logIt {
		h.logger.Info("download progress", log.Int("progress", pct))
	}
	h.notify(transport.Message{Type: transport.TypeProgress, Progress: pct, Source: source})
}

func (h *Host) classify(ctx context.Context, text string) transport.Response {
	if strings.TrimSpace(text) == "" {
		return transport.Failure(domain.ErrEmptyText.Error())
	}
	if loaded, _ := h.state(); !loaded {
		return transport.Failure(domain.ErrNotReady.Error())
	}

	out, err := h.engine.Complete(ctx, engine.BuildPrompt(text), engine.ClassificationOptions())
	if err != nil {
		if errors.Is(err, engine.ErrNotLoaded) {
			return transport.Failure(domain.ErrNotReady.Error())
		}
		h.logger.Error("classification failed", log.Err(err))
		return transport.Failure(err.Error())
	}

	result := engine.ParseLabel(out)
	h.logger.Debug("classified", log.String("label", string(result.Label)), log.String("raw", out))
	return transport.Response{Success: true, Loaded: true, Result: &result}
}

func (h *Host) notify(msg transport.Message) {
	h.mu.Lock()
	n := h.notifier
	h.mu.Unlock()
	if n != nil {
		n.Notify(transport.RoleCoordinator, msg)
	}
}

// Close unloads the model.
func (h *Host) Close() error {
	h.mu.Lock()
	h.loaded = false
	h.mu.Unlock()
	return h.engine.Close()
}

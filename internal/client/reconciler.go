package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// Defaults for Config.
const (
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 120 * time.Second
)

// Config configures a Reconciler.
type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultConfig polls every second for up to two minutes.
func DefaultConfig() Config {
	return Config{PollInterval: DefaultPollInterval, PollTimeout: DefaultPollTimeout}
}

// Reconciler drives a View from coordinator pushes and polls.
type Reconciler struct {
	link     Link
	renderer Renderer
	cfg      Config
	logger   log.Logger
	now      func() time.Time

	mu   sync.Mutex
	view View
}

// NewReconciler creates a reconciler. renderer may be nil.
func NewReconciler(link Link, renderer Renderer, cfg Config, logger log.Logger) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if renderer == nil {
		renderer = RendererFunc(func(View) {})
	}
	return &Reconciler{
		link:     link,
		renderer: renderer,
		cfg:      cfg,
		logger:   log.OrNoop(logger).With(log.String("role", transport.RoleClient.String())),
		now:      time.Now,
	}
}

// View returns the current view.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Attach reconciles until the model is ready or failed. A coordinator that
// already reports loaded is rendered ready from one status round trip. When
// neither loaded nor loading it asks the coordinator to initialize. The poll
// ceiling ends with domain.ErrPollTimeout and a stalled view.
func (r *Reconciler) Attach(ctx context.Context) (View, error) {
	events, err := r.link.Subscribe(ctx)
	if err != nil {
		r.logger.Warn("push unavailable, polling only", log.Err(err))
		events = nil
	}
	if events != nil {
		defer events.Close()
	}

	resp, err := r.link.Request(ctx, transport.Message{Type: transport.TypeStatus})
	if err != nil {
		return r.View(), err
	}
	if done, err := r.applyStatus(resp); done {
		return r.View(), err
	}

	if !resp.Loading {
		resp, err = r.link.Request(ctx, transport.Message{Type: transport.TypeInit})
		if err != nil {
			return r.View(), err
		}
		if done, err := r.applyStatus(resp); done {
			return r.View(), err
		}
	}

	return r.poll(ctx, events)
}

func (r *Reconciler) poll(ctx context.Context, events Events) (View, error) {
	var pushes <-chan transport.Message
	if events != nil {
		pushes = events.C()
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	ceiling := time.NewTimer(r.cfg.PollTimeout)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.View(), ctx.Err()

		case <-ceiling.C:
			r.update(func(v *View) { v.Phase = PhaseStalled })
			r.logger.Warn("no ready signal before poll timeout", log.Duration("timeout", r.cfg.PollTimeout))
			return r.View(), domain.ErrPollTimeout

		case msg, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			if done, err := r.applyEvent(msg); done {
				return r.View(), err
			}

		case <-ticker.C:
			resp, err := r.link.Request(ctx, transport.Message{Type: transport.TypeStatus})
			if err != nil {
				r.logger.Debug("status poll failed", log.Err(err))
				continue
			}
			if done, err := r.applyStatus(resp); done {
				return r.View(), err
			}
		}
	}
}

// Run attaches and then follows the coordinator until ctx ends, picking up
// resets made by other clients. It returns nil when ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if _, err := r.Attach(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		var loadErr *domain.ModelLoadError
		if !errors.Is(err, domain.ErrPollTimeout) && !errors.As(err, &loadErr) {
			return err
		}
	}

	events, err := r.link.Subscribe(ctx)
	if err != nil {
		r.logger.Warn("push unavailable, polling only", log.Err(err))
		events = nil
	}
	var pushes <-chan transport.Message
	if events != nil {
		defer events.Close()
		pushes = events.C()
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			r.applyEvent(msg)
		case <-ticker.C:
			resp, err := r.link.Request(ctx, transport.Message{Type: transport.TypeStatus})
			if err != nil {
				r.logger.Debug("status poll failed", log.Err(err))
				continue
			}
			r.applyStatus(resp)
		}
	}
}

// applyStatus folds a status response into the view. It reports whether the
// status was terminal and, if it was a failure, the error.
func (r *Reconciler) applyStatus(resp transport.Response) (bool, error) {
	switch {
	case resp.Loaded:
		r.update(func(v *View) {
			v.Phase = PhaseReady
			v.Progress = 100
			v.Reason = ""
			v.Attempt = resp.Attempt
		})
		return true, nil

	case resp.Loading:
		r.update(func(v *View) {
			if v.Attempt != resp.Attempt || v.Phase != PhaseLoading {
				v.Progress = resp.Progress
			} else if resp.Progress > v.Progress {
				v.Progress = resp.Progress
			}
			v.Phase = PhaseLoading
			v.Reason = ""
			v.Attempt = resp.Attempt
		})
		return false, nil

	case resp.Error != "":
		r.update(func(v *View) {
			v.Phase = PhaseFailed
			v.Reason = resp.Error
			v.Attempt = resp.Attempt
		})
		return true, &domain.ModelLoadError{Reason: resp.Error}
	}
	return false, nil
}

// applyEvent folds a push into the view. Progress only counts while
// loading, so a late PROGRESS never undoes a terminal state.
func (r *Reconciler) applyEvent(msg transport.Message) (bool, error) {
	switch msg.Type {
	case transport.TypeProgress:
		r.mu.Lock()
		accept := (r.view.Phase == PhaseLoading || r.view.Phase == PhaseUnknown) && msg.Progress > r.view.Progress
		r.mu.Unlock()
		if accept {
			r.update(func(v *View) {
				v.Phase = PhaseLoading
				if msg.Progress > v.Progress {
					v.Progress = msg.Progress
				}
			})
		}
		return false, nil

	case transport.TypeReady:
		r.update(func(v *View) {
			v.Phase = PhaseReady
			v.Progress = 100
			v.Reason = ""
		})
		return true, nil

	case transport.TypeError:
		r.update(func(v *View) {
			v.Phase = PhaseFailed
			v.Reason = msg.Reason
		})
		return true, &domain.ModelLoadError{Reason: msg.Reason}
	}
	return false, nil
}

func (r *Reconciler) update(fn func(*View)) {
	r.mu.Lock()
	fn(&r.view)
	r.view.Updated = r.now()
	v := r.view
	r.mu.Unlock()

	r.renderer.Render(v)
}

package client_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/modelhost/internal/client"
	"github.com/bft-labs/modelhost/internal/coordinator"
	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/internal/workerhost"
	"github.com/bft-labs/modelhost/pkg/retry"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// silentLink drops every push, as if all broadcasts were missed.
type silentLink struct {
	*client.BusLink
}

type silentEvents struct{ ch chan transport.Message }

func (s silentEvents) C() <-chan transport.Message { return s.ch }
func (s silentEvents) Close()                      {}

func (l silentLink) Subscribe(ctx context.Context) (client.Events, error) {
	return silentEvents{ch: make(chan transport.Message)}, nil
}

type stack struct {
	bus      *transport.Bus
	coord    *coordinator.Coordinator
	launcher *workerhost.BusLauncher
}

func newStack(t *testing.T, newEngine func() engine.Engine) *stack {
	t.Helper()
	bus := transport.NewBus(nil)
	launcher := workerhost.NewBusLauncher(bus, newEngine, nil)
	adapter := workerhost.NewAdapter(bus, launcher, workerhost.AdapterConfig{
		From:   transport.RoleCoordinator,
		Policy: retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond, Settle: time.Millisecond},
	}, nil)
	coord := coordinator.New(coordinator.Config{Source: "sim://model", BusyRecheckDelay: time.Millisecond}, adapter, bus)
	ep, err := bus.Register(transport.RoleCoordinator, coord)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ep.Close()
		coord.Close()
		launcher.Destroy()
	})
	return &stack{bus: bus, coord: coord, launcher: launcher}
}

func simulated(steps int, delay time.Duration) func() engine.Engine {
	return func() engine.Engine {
		e := engine.NewSimulated(steps, delay)
		e.Output = func(string) string { return "ai_generated" }
		return e
	}
}

func TestEndToEnd_AttachLoadsAndClassifies(t *testing.T) {
	s := newStack(t, simulated(5, 2*time.Millisecond))
	link := client.NewBusLink(s.bus)

	var views []client.View
	r := client.NewReconciler(link, client.RendererFunc(func(v client.View) { views = append(views, v) }),
		client.Config{PollInterval: 10 * time.Millisecond, PollTimeout: 5 * time.Second}, nil)

	view, err := r.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if view.Phase != client.PhaseReady {
		t.Fatalf("Phase = %s, want ready", view.Phase)
	}
	for i := 1; i < len(views); i++ {
		if views[i].Attempt == views[i-1].Attempt && views[i].Progress < views[i-1].Progress {
			t.Errorf("rendered progress went from %d to %d", views[i-1].Progress, views[i].Progress)
		}
	}

	res, err := client.NewCommands(link).Classify(context.Background(), "This paragraph was written to be classified by the model.")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Label != transport.LabelAIGenerated {
		t.Errorf("Label = %s", res.Label)
	}
	if s.launcher.Launches() != 1 {
		t.Errorf("Launches() = %d, want 1", s.launcher.Launches())
	}
}

func TestEndToEnd_MissedBroadcastsConverge(t *testing.T) {
	s := newStack(t, simulated(10, 5*time.Millisecond))
	s.coord.Begin()

	link := silentLink{client.NewBusLink(s.bus)}
	r := client.NewReconciler(link, nil, client.Config{PollInterval: 10 * time.Millisecond, PollTimeout: 5 * time.Second}, nil)

	view, err := r.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if view.Phase != client.PhaseReady {
		t.Errorf("Phase = %s, want ready", view.Phase)
	}
}

func TestEndToEnd_FailureThenReset(t *testing.T) {
	fail := true
	s := newStack(t, func() engine.Engine {
		e := engine.NewSimulated(1, 0)
		if fail {
			e.LoadErr = errors.New("model file truncated")
		}
		return e
	})
	link := client.NewBusLink(s.bus)
	r := client.NewReconciler(link, nil, client.Config{PollInterval: 10 * time.Millisecond, PollTimeout: 5 * time.Second}, nil)

	_, err := r.Attach(context.Background())
	var loadErr *domain.ModelLoadError
	if !errors.As(err, &loadErr) || loadErr.Reason != "model file truncated" {
		t.Fatalf("Attach() error = %v, want ModelLoadError", err)
	}

	cmds := client.NewCommands(link)
	if _, err := cmds.Classify(context.Background(), "This paragraph was written to be classified."); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Classify() when failed error = %v, want ErrNotReady", err)
	}

	// The failed worker keeps its engine; drop it so the reset builds a
	// healthy one.
	fail = false
	s.launcher.Destroy()

	if _, err := cmds.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	view, err := r.Attach(context.Background())
	if err != nil || view.Phase != client.PhaseReady {
		t.Fatalf("Attach() after reset = %+v, %v; want ready", view, err)
	}
}

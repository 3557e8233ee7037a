package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/modelhost/internal/client"
	"github.com/bft-labs/modelhost/internal/coordinator"
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/internal/workerhost"
	"github.com/bft-labs/modelhost/pkg/retry"
	"github.com/bft-labs/modelhost/pkg/transport"
)

func newTestServer(t *testing.T, bus *transport.Bus) (*httptest.Server, *Link) {
	t.Helper()
	srv := NewServer(bus, time.Second, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, NewLink(ts.URL, ts.Client(), nil)
}

func TestLink_Request(t *testing.T) {
	bus := transport.NewBus(nil)
	_, err := bus.Register(transport.RoleCoordinator, transport.HandlerFunc(
		func(ctx context.Context, from transport.Role, msg transport.Message) (transport.Response, error) {
			if from != transport.RoleClient {
				t.Errorf("from = %s, want client", from)
			}
			if msg.Type != transport.TypeStatus {
				return transport.Response{}, transport.ErrUnhandled
			}
			return transport.Response{Success: true, Loading: true, Progress: 37, Attempt: "a1"}, nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	_, link := newTestServer(t, bus)

	resp, err := link.Request(context.Background(), transport.Message{Type: transport.TypeStatus})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if !resp.Loading || resp.Progress != 37 || resp.Attempt != "a1" {
		t.Errorf("Request() = %+v", resp)
	}

	_, err = link.Request(context.Background(), transport.Message{Type: transport.TypeLoad})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("unhandled Request() error = %v, want 400", err)
	}
}

func TestLink_CoordinatorMissing(t *testing.T) {
	_, link := newTestServer(t, transport.NewBus(nil))

	_, err := link.Request(context.Background(), transport.Message{Type: transport.TypeStatus})
	if !errors.Is(err, transport.ErrUnreachable) {
		t.Errorf("Request() error = %v, want ErrUnreachable", err)
	}
}

func TestLink_ServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	link := NewLink(url, http.DefaultClient, nil)
	_, err := link.Request(context.Background(), transport.Message{Type: transport.TypeStatus})
	if !errors.Is(err, transport.ErrUnreachable) {
		t.Errorf("Request() error = %v, want ErrUnreachable", err)
	}
}

func TestServer_BadBody(t *testing.T) {
	ts, _ := newTestServer(t, transport.NewBus(nil))

	resp, err := ts.Client().Post(ts.URL+messagesEndpoint, "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, transport.NewBus(nil))

	resp, err := ts.Client().Get(ts.URL + healthEndpoint)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLink_SubscribeStreamsBroadcasts(t *testing.T) {
	bus := transport.NewBus(nil)
	_, link := newTestServer(t, bus)

	events, err := link.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer events.Close()

	// Wait for the server side subscription to exist.
	deadline := time.Now().Add(2 * time.Second)
	for bus.Broadcast(transport.RoleCoordinator, transport.Message{Type: transport.TypeProgress, Progress: 10}) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	bus.Broadcast(transport.RoleCoordinator, transport.Message{Type: transport.TypeReady})

	var got []transport.Type
	timeout := time.After(2 * time.Second)
	for len(got) == 0 || got[len(got)-1] != transport.TypeReady {
		select {
		case msg, ok := <-events.C():
			if !ok {
				t.Fatalf("stream closed early, got %v", got)
			}
			got = append(got, msg.Type)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != transport.TypeProgress {
		t.Errorf("first event = %s, want PROGRESS", got[0])
	}
}

func TestEndToEnd_RemoteClient(t *testing.T) {
	bus := transport.NewBus(nil)
	launcher := workerhost.NewBusLauncher(bus, func() engine.Engine {
		e := engine.NewSimulated(4, 5*time.Millisecond)
		e.Output = func(string) string { return "human_written" }
		return e
	}, nil)
	adapter := workerhost.NewAdapter(bus, launcher, workerhost.AdapterConfig{
		Policy: retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond, Settle: time.Millisecond},
	}, nil)
	coord := coordinator.New(coordinator.DefaultConfig("sim://model"), adapter, bus)
	defer coord.Close()
	if _, err := bus.Register(transport.RoleCoordinator, coord); err != nil {
		t.Fatal(err)
	}

	_, link := newTestServer(t, bus)
	r := client.NewReconciler(link, nil, client.Config{PollInterval: 10 * time.Millisecond, PollTimeout: 5 * time.Second}, nil)

	view, err := r.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if view.Phase != client.PhaseReady {
		t.Fatalf("Phase = %s, want ready", view.Phase)
	}

	res, err := client.NewCommands(link).Classify(context.Background(), "Handwritten notes from a long walk by the river.")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Label != transport.LabelHumanWritten {
		t.Errorf("Label = %s", res.Label)
	}
}

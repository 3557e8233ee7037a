package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bft-labs/modelhost/internal/adapters/fs"
	"github.com/bft-labs/modelhost/internal/engine"
	"github.com/bft-labs/modelhost/pkg/lifecycle"
	"github.com/bft-labs/modelhost/pkg/retry"
)

func testHostConfig() HostConfig {
	return HostConfig{
		Source:           "mem://model",
		Listen:           "127.0.0.1:0",
		RequestTimeout:   time.Second,
		Policy:           retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond},
		BusyRecheckDelay: time.Millisecond,
		BusyRechecks:     1,
		AutoInit:         true,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHost_RunLoadsAndRecords(t *testing.T) {
	repo := fs.NewStatusFileRepository(t.TempDir())
	h, err := NewHost(testHostConfig(), func() engine.Engine {
		return engine.NewSimulated(4, time.Millisecond)
	}, repo, nil)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		snap, err := repo.Load(context.Background())
		return err == nil && snap.State == "Ready"
	})

	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Source != "mem://model" {
		t.Errorf("recorded = %+v, want Ready from mem://model", snap)
	}

	addr := h.Addr()
	if addr == nil {
		t.Fatal("Addr() = nil while running")
	}
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if h.launcher.Exists() {
		t.Error("worker host still registered after shutdown")
	}
}

func TestHost_NoAutoInit(t *testing.T) {
	cfg := testHostConfig()
	cfg.AutoInit = false
	cfg.Listen = ""

	h, err := NewHost(cfg, func() engine.Engine {
		return engine.NewSimulated(1, time.Millisecond)
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = h.Run(ctx)

	if got := h.Coordinator().Machine().Snapshot().State; got != lifecycle.StateNotLoaded {
		t.Errorf("state = %v, want NotLoaded without auto init", got)
	}
	if h.Addr() != nil {
		t.Error("Addr() should be nil with the server disabled")
	}
}

func TestHost_Reload(t *testing.T) {
	cfg := testHostConfig()
	cfg.Listen = ""
	h, err := NewHost(cfg, func() engine.Engine {
		return engine.NewSimulated(1, time.Millisecond)
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		return h.Coordinator().Machine().Snapshot().Loaded()
	})
	if err := h.Reload(ctx, "mem://other"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return h.Coordinator().Machine().Snapshot().Loaded()
	})
	if got := h.Coordinator().Source(); got != "mem://other" {
		t.Errorf("Source() = %v, want mem://other", got)
	}
}

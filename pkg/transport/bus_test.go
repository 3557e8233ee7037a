package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, from Role, msg Message) (Response, error) {
		return Response{Success: true, Error: string(from) + ":" + msg.Text}, nil
	})
}

func TestBus_RequestUnreachable(t *testing.T) {
	b := NewBus(nil)
	_, err := b.Request(context.Background(), RoleCoordinator, RoleWorker, Message{Type: TypeStatus})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Request() = %v, want ErrUnreachable", err)
	}
}

func TestBus_RequestRoundTrip(t *testing.T) {
	b := NewBus(nil)
	if _, err := b.Register(RoleWorker, echoHandler()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp, err := b.Request(context.Background(), RoleCoordinator, RoleWorker, Message{Type: TypeClassify, Text: "hi"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !resp.Success || resp.Error != "coordinator:hi" {
		t.Errorf("response = %+v", resp)
	}
}

func TestBus_RegisterTwice(t *testing.T) {
	b := NewBus(nil)
	if _, err := b.Register(RoleWorker, echoHandler()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Register(RoleWorker, echoHandler()); !errors.Is(err, ErrRoleTaken) {
		t.Errorf("second Register = %v, want ErrRoleTaken", err)
	}
}

func TestEndpoint_CloseFailsInFlightRequest(t *testing.T) {
	b := NewBus(nil)
	started := make(chan struct{})
	ep, _ := b.Register(RoleWorker, HandlerFunc(func(ctx context.Context, from Role, msg Message) (Response, error) {
		close(started)
		<-ctx.Done()
		return Response{}, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Request(ctx, RoleCoordinator, RoleWorker, Message{Type: TypeLoad})
		errCh <- err
	}()

	<-started
	ep.Close()

	if err := <-errCh; !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Request() = %v, want ErrUnreachable", err)
	}
	if b.Has(RoleWorker) {
		t.Error("closed endpoint still registered")
	}

	if _, err := b.Register(RoleWorker, echoHandler()); err != nil {
		t.Errorf("re-register after close: %v", err)
	}
}

func TestBus_BroadcastSkipsSender(t *testing.T) {
	b := NewBus(nil)
	coord := b.Subscribe(RoleCoordinator, 4)
	client1 := b.Subscribe(RoleClient, 4)
	client2 := b.Subscribe(RoleClient, 4)
	defer coord.Close()
	defer client1.Close()
	defer client2.Close()

	n := b.Broadcast(RoleCoordinator, Message{Type: TypeReady})
	if n != 2 {
		t.Fatalf("delivered to %d, want 2", n)
	}

	for _, s := range []*Subscription{client1, client2} {
		select {
		case m := <-s.C():
			if m.Type != TypeReady {
				t.Errorf("got %v, want READY", m.Type)
			}
		default:
			t.Error("client did not receive broadcast")
		}
	}
	select {
	case m := <-coord.C():
		t.Errorf("sender received its own broadcast %v", m)
	default:
	}
}

func TestBus_BroadcastDropsWhenFull(t *testing.T) {
	b := NewBus(nil)
	s := b.Subscribe(RoleClient, 1)
	defer s.Close()

	b.Broadcast(RoleCoordinator, Message{Type: TypeProgress, Progress: 1})
	if n := b.Broadcast(RoleCoordinator, Message{Type: TypeProgress, Progress: 2}); n != 0 {
		t.Errorf("full subscriber accepted message, n=%d", n)
	}

	m := <-s.C()
	if m.Progress != 1 {
		t.Errorf("progress = %d, want 1", m.Progress)
	}
}

func TestBus_BroadcastWithoutListeners(t *testing.T) {
	b := NewBus(nil)
	if n := b.Broadcast(RoleCoordinator, Message{Type: TypeReady}); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	b := NewBus(nil)
	s := b.Subscribe(RoleClient, 0)
	s.Close()
	s.Close()

	if _, ok := <-s.C(); ok {
		t.Error("channel should be closed")
	}
	if n := b.Broadcast(RoleCoordinator, Message{Type: TypeReady}); n != 0 {
		t.Errorf("closed subscription received message")
	}
}

func TestEndpoint_NotifyDeliversAsync(t *testing.T) {
	b := NewBus(nil)
	got := make(chan Message, 1)
	b.Register(RoleCoordinator, HandlerFunc(func(ctx context.Context, from Role, msg Message) (Response, error) {
		if from != RoleWorker {
			t.Errorf("from = %v, want worker", from)
		}
		got <- msg
		return OK(), nil
	}))
	worker, _ := b.Register(RoleWorker, echoHandler())

	worker.Notify(RoleCoordinator, Message{Type: TypeProgress, Progress: 42})

	select {
	case m := <-got:
		if m.Progress != 42 {
			t.Errorf("progress = %d", m.Progress)
		}
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}

	// Notify to a missing role must not panic or block.
	worker.Notify(RoleClient, Message{Type: TypeReady})
}

func TestType_Terminal(t *testing.T) {
	tests := []struct {
		typ  Type
		want bool
	}{
		{TypeReady, true},
		{TypeError, true},
		{TypeProgress, false},
		{TypeStatus, false},
	}
	for _, tt := range tests {
		if got := tt.typ.Terminal(); got != tt.want {
			t.Errorf("%v.Terminal() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

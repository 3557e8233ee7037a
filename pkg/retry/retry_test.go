package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: time.Millisecond, Settle: time.Millisecond}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.Backoff != 500*time.Millisecond {
		t.Errorf("Backoff = %v, want 500ms", p.Backoff)
	}
	if p.Delay() != 500*time.Millisecond {
		t.Errorf("Delay() = %v, want fixed 500ms", p.Delay())
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	var calls, befores []int
	err := Do(context.Background(), fastPolicy(),
		func(ctx context.Context, n int) error {
			befores = append(befores, n)
			return nil
		},
		func(ctx context.Context, n int) error {
			calls = append(calls, n)
			if n < 3 {
				return errors.New("unreachable")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if len(calls) != 3 {
		t.Errorf("op called %d times, want 3", len(calls))
	}
	if len(befores) != 2 || befores[0] != 2 || befores[1] != 3 {
		t.Errorf("before called with %v, want [2 3]", befores)
	}
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	last := errors.New("third")
	n := 0
	err := Do(context.Background(), fastPolicy(), nil, func(ctx context.Context, attempt int) error {
		n++
		if attempt == 3 {
			return last
		}
		return errors.New("earlier")
	})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("Do() = %v, want ExhaustedError", err)
	}
	if ex.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ex.Attempts)
	}
	if !errors.Is(err, last) {
		t.Errorf("Do() should wrap the last error, got %v", err)
	}
	if n != 3 {
		t.Errorf("op called %d times, want 3", n)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	n := 0
	err := Do(context.Background(), fastPolicy(), nil, func(ctx context.Context, attempt int) error {
		n++
		return Permanent(sentinel)
	})
	if err != sentinel {
		t.Errorf("Do() = %v, want sentinel", err)
	}
	if n != 1 {
		t.Errorf("op called %d times, want 1", n)
	}
}

func TestDo_FailingBeforeCountsAsAttempt(t *testing.T) {
	creation := errors.New("cannot create")
	ops := 0
	err := Do(context.Background(), fastPolicy(),
		func(ctx context.Context, n int) error { return creation },
		func(ctx context.Context, n int) error {
			ops++
			return errors.New("unreachable")
		})
	if !errors.Is(err, creation) {
		t.Errorf("Do() = %v, want creation error", err)
	}
	if ops != 1 {
		t.Errorf("op called %d times, want 1", ops)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Backoff: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, nil, func(ctx context.Context, n int) error {
			return errors.New("unreachable")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestPolicy_DelayJitterBounds(t *testing.T) {
	p := Policy{Backoff: 100 * time.Millisecond, Jitter: 0.2}
	for i := 0; i < 100; i++ {
		d := p.Delay()
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("Delay() = %v outside ±20%%", d)
		}
	}
}

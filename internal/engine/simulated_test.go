package engine

import (
	"context"
	"errors"
	"testing"
)

func TestSimulated_LoadReportsSteps(t *testing.T) {
	s := NewSimulated(4, 0)
	s.Size = 400

	var seen []int64
	if err := s.Load(context.Background(), "sim://model", func(l, _ int64) { seen = append(seen, l) }); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []int64{100, 200, 300, 400}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
	if s.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", s.Loads())
	}
}

func TestSimulated_LoadError(t *testing.T) {
	boom := errors.New("out of memory")
	s := NewSimulated(1, 0)
	s.LoadErr = boom

	if err := s.Load(context.Background(), "sim://model", nil); !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want %v", err, boom)
	}
	if _, err := s.Complete(context.Background(), "p", CompletionOptions{}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Complete() error = %v, want ErrNotLoaded", err)
	}
}

func TestSimulated_Output(t *testing.T) {
	s := NewSimulated(1, 0)
	s.Output = func(string) string { return "human_written" }
	if err := s.Load(context.Background(), "sim://model", nil); err != nil {
		t.Fatal(err)
	}
	out, err := s.Complete(context.Background(), "p", CompletionOptions{})
	if err != nil || out != "human_written" {
		t.Errorf("Complete() = %q, %v", out, err)
	}
}

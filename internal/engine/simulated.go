package engine

import (
	"context"
	"sync"
	"time"
)

// Simulated is an in-memory engine that pretends to download a model in
// fixed steps. It backs --simulate mode and tests.
type Simulated struct {
	// Size is the pretend model size in bytes.
	Size int64
	// Steps is the number of progress reports during Load.
	Steps int
	// StepDelay is the wait between progress reports.
	StepDelay time.Duration
	// LoadErr, when set, fails Load after the last step.
	LoadErr error
	// Output returns the raw completion for a prompt.
	Output func(prompt string) string

	mu     sync.Mutex
	loads  int
	loaded string
}

// NewSimulated returns a simulated engine taking roughly steps*delay to load.
func NewSimulated(steps int, delay time.Duration) *Simulated {
	return &Simulated{Size: 253 << 20, Steps: steps, StepDelay: delay}
}

// Load reports progress in Steps increments.
func (s *Simulated) Load(ctx context.Context, source string, progress ProgressFunc) error {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()

	steps := s.Steps
	if steps <= 0 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.StepDelay):
		}
		if progress != nil {
			progress(s.Size*int64(i)/int64(steps), s.Size)
		}
	}
	if s.LoadErr != nil {
		return s.LoadErr
	}

	s.mu.Lock()
	s.loaded = source
	s.mu.Unlock()
	return nil
}

// Complete returns Output(prompt), or "uncertain" when Output is nil.
func (s *Simulated) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded == "" {
		return "", ErrNotLoaded
	}
	if s.Output != nil {
		return s.Output(prompt), nil
	}
	return "uncertain", nil
}

// Close unloads the model.
func (s *Simulated) Close() error {
	s.mu.Lock()
	s.loaded = ""
	s.mu.Unlock()
	return nil
}

// Loads returns how many times Load was called.
func (s *Simulated) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

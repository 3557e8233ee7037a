package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Attempt is the ownership handle of one initialization attempt. Every
// caller that joins the attempt observes the same outcome.
type Attempt struct {
	id      string
	started time.Time

	once sync.Once
	done chan struct{}
	err  error
}

func newAttempt() *Attempt {
	return &Attempt{
		id:      uuid.NewString(),
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID uniquely identifies the attempt.
func (a *Attempt) ID() string { return a.id }

// Started returns when the attempt began.
func (a *Attempt) Started() time.Time { return a.started }

// Done is closed once the attempt is resolved.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Resolved reports whether the outcome is known.
func (a *Attempt) Resolved() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Err returns the outcome. It is nil while unresolved and on success.
func (a *Attempt) Err() error {
	if !a.Resolved() {
		return nil
	}
	return a.err
}

// Wait blocks until the attempt resolves or ctx ends.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve sets the outcome once. Later calls are ignored.
func (a *Attempt) resolve(err error) bool {
	resolved := false
	a.once.Do(func() {
		a.err = err
		close(a.done)
		resolved = true
	})
	return resolved
}

// Package client keeps a client's view of the model consistent with the
// coordinator using broadcast pushes backed by status polling.
package client

import (
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// Phase is the client's rendering state.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
	// PhaseStalled means polling gave up without a terminal signal. The
	// load may still be running.
	PhaseStalled
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends reconciliation.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// View is the client's cached projection of the coordinator state.
type View struct {
	Phase    Phase
	Progress int
	Reason   string
	Attempt  string
	Updated  time.Time
}

// Renderer shows a View to the user.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

// Render calls f.
func (f RendererFunc) Render(v View) { f(v) }

// StatusView is the view of a single status response.
func StatusView(resp transport.Response) View {
	v := View{Progress: resp.Progress, Attempt: resp.Attempt, Updated: time.Now()}
	switch {
	case resp.Loaded:
		v.Phase = PhaseReady
		v.Progress = 100
	case resp.Loading:
		v.Phase = PhaseLoading
	case resp.Error != "":
		v.Phase = PhaseFailed
		v.Reason = resp.Error
	}
	return v
}

// SnapshotView is the view of a recorded status snapshot.
func SnapshotView(s domain.StatusSnapshot) View {
	v := View{Progress: s.Progress, Reason: s.Reason, Attempt: s.Attempt, Updated: s.UpdatedAt}
	switch s.State {
	case "Ready":
		v.Phase = PhaseReady
		v.Progress = 100
	case "Loading":
		v.Phase = PhaseLoading
	case "Failed":
		v.Phase = PhaseFailed
	}
	return v
}

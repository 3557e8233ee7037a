package modelhost

import "time"

// State is the run state of a Host.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent is emitted when the host's run state changes.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ModelEvent is emitted on every accepted model lifecycle transition.
type ModelEvent struct {
	Previous string
	Current  string
	Progress int
	Reason   string
	Attempt  string
	At       time.Time
}

// EventHandler receives host events. Callbacks run synchronously on the
// goroutine that caused the change and must not block.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnModelChange(ModelEvent)
}

// BaseEventHandler provides no-op implementations for embedding.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnModelChange(ModelEvent)       {}

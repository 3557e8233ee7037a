package lifecycle

// State is the lifecycle state of the model.
type State int

const (
	StateNotLoaded State = iota
	StateLoading
	StateReady
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "NotLoaded"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s only changes on Reset.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// validTransitions lists the states reachable from each state.
var validTransitions = map[State][]State{
	StateNotLoaded: {StateLoading},
	StateLoading:   {StateReady, StateFailed, StateNotLoaded},
	StateReady:     {StateNotLoaded},
	StateFailed:    {StateNotLoaded},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Snapshot is a read-only copy of the machine's state.
type Snapshot struct {
	State     State  `json:"state"`
	Progress  int    `json:"progress"`
	Reason    string `json:"reason,omitempty"`
	AttemptID string `json:"attempt_id,omitempty"`
}

// Loaded reports whether the model is ready.
func (s Snapshot) Loaded() bool { return s.State == StateReady }

// Loading reports whether an attempt is in flight.
func (s Snapshot) Loading() bool { return s.State == StateLoading }

// EventEmitter is called after accepted state changes, one at a time and in
// order. A change overtaken by a newer one before delivery is skipped.
// Implementations must not change the Machine's state.
type EventEmitter interface {
	OnStateChange(previous State, current Snapshot)
}

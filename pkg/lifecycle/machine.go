package lifecycle

import (
	"errors"
	"sync"

	"github.com/bft-labs/modelhost/pkg/log"
)

// Lifecycle errors.
var (
	// ErrSuperseded resolves an attempt that was discarded by Reset.
	ErrSuperseded = errors.New("lifecycle: attempt superseded by reset")
)

// Machine holds the lifecycle state and the current attempt.
type Machine struct {
	mu      sync.Mutex
	snap    Snapshot
	attempt *Attempt

	// seq numbers every notified change; delivered is the newest one
	// handed to the emitter. Older deliveries are dropped.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64

	logger  log.Logger
	emitter EventEmitter

	// beforeNotify runs ahead of delivery. Tests use it to hold a
	// notification back.
	beforeNotify func(Snapshot)
}

// NewMachine creates a machine in StateNotLoaded.
func NewMachine(logger log.Logger, emitter EventEmitter) *Machine {
	return &Machine{
		snap:    Snapshot{State: StateNotLoaded},
		logger:  log.OrNoop(logger),
		emitter: emitter,
	}
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Attempt returns the current attempt, resolved or not, or nil when none
// exists since the last Reset.
func (m *Machine) Attempt() *Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Pending returns the unresolved attempt, or nil.
func (m *Machine) Pending() *Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt == nil || m.attempt.Resolved() {
		return nil
	}
	return m.attempt
}

// Begin starts a new attempt when the state is NotLoaded and returns it with
// started=true. In any other state it returns the existing attempt (which
// may be resolved) with started=false.
func (m *Machine) Begin() (attempt *Attempt, started bool) {
	m.mu.Lock()
	if m.snap.State != StateNotLoaded {
		a := m.attempt
		m.mu.Unlock()
		return a, false
	}

	a := newAttempt()
	m.attempt = a
	prev := m.snap.State
	m.snap = Snapshot{State: StateLoading, Progress: 0, AttemptID: a.ID()}
	cur := m.snap
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	m.notify(seq, prev, cur, "initialize")
	return a, true
}

// Advance records progress for the attempt with the given id. It returns
// false when the report is stale, the state is not Loading, or pct does not
// increase the current progress.
func (m *Machine) Advance(id string, pct int) bool {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.State != StateLoading || m.snap.AttemptID != id {
		return false
	}
	if pct <= m.snap.Progress {
		return false
	}
	m.snap.Progress = pct
	return true
}

// Complete resolves the attempt with the given id and moves the machine to
// Ready (err == nil) or Failed. It returns false, leaving the machine
// untouched, when id is not the current unresolved attempt.
func (m *Machine) Complete(id string, err error) bool {
	m.mu.Lock()
	a := m.attempt
	if a == nil || a.ID() != id || m.snap.State != StateLoading {
		m.mu.Unlock()
		return false
	}

	prev := m.snap.State
	reason := "loaded"
	if err == nil {
		m.snap = Snapshot{State: StateReady, Progress: 100, AttemptID: id}
	} else {
		reason = err.Error()
		m.snap = Snapshot{State: StateFailed, Progress: m.snap.Progress, Reason: reason, AttemptID: id}
	}
	cur := m.snap
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	// Listeners see the transition before waiters are released.
	m.notify(seq, prev, cur, reason)
	a.resolve(err)
	return true
}

// Reset unconditionally returns the machine to NotLoaded and drops the
// current attempt. An unresolved attempt is resolved with ErrSuperseded.
func (m *Machine) Reset(reason string) {
	m.mu.Lock()
	a := m.attempt
	prev := m.snap.State
	m.attempt = nil
	m.snap = Snapshot{State: StateNotLoaded}
	cur := m.snap
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	if prev != StateNotLoaded {
		m.notify(seq, prev, cur, reason)
	}
	if a != nil {
		a.resolve(ErrSuperseded)
	}
}

// notify runs outside the state lock. Deliveries are serialized, and one
// that was overtaken by a newer change is dropped so the emitter never ends
// on a state the machine has already left.
func (m *Machine) notify(seq uint64, prev State, cur Snapshot, reason string) {
	if m.beforeNotify != nil {
		m.beforeNotify(cur)
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if seq <= m.delivered {
		m.logger.Debug("dropping stale transition",
			log.Stringer("to", cur.State),
			log.String("attempt", cur.AttemptID),
		)
		return
	}
	m.delivered = seq

	if !CanTransition(prev, cur.State) {
		m.logger.Error("illegal lifecycle transition",
			log.Stringer("from", prev),
			log.Stringer("to", cur.State),
		)
	}

	m.logger.Info("state transition",
		log.Stringer("from", prev),
		log.Stringer("to", cur.State),
		log.String("attempt", cur.AttemptID),
		log.String("reason", reason),
	)

	if m.emitter != nil {
		m.emitter.OnStateChange(prev, cur)
	}
}

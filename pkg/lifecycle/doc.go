// Package lifecycle owns the model lifecycle state machine.
//
// The Machine is the single source of truth for whether the model is
// NotLoaded, Loading, Ready or Failed. It exposes a closed set of named
// operations instead of field mutation:
//
//	attempt, started := machine.Begin()
//	if started {
//	    go load(attempt)
//	}
//	err := attempt.Wait(ctx)
//
// Begin coalesces concurrent initialization: while an attempt is unresolved
// every caller receives the same *Attempt. Once resolved the attempt stays
// attached to the machine as a memoized outcome until Reset.
//
// # State Machine
//
// Valid state transitions:
//   - NotLoaded -> Loading (Begin)
//   - Loading -> Ready, Failed (Complete)
//   - Ready, Failed, Loading -> NotLoaded (Reset)
//
// Progress is non-decreasing within one attempt, starts at 0 and is 100 once
// Ready. Progress reports for a stale attempt or outside Loading are dropped.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
package lifecycle

// Package retry provides a pure retry policy and a generic attempt runner.
//
// A Policy says how many times to try, how long to back off between failed
// attempts and how long to let a re-established destination settle. It knows
// nothing about what is being retried:
//
//	err := retry.Do(ctx, retry.DefaultPolicy(), reconnect, func(ctx context.Context, n int) error {
//	    return send(ctx, msg)
//	})
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package retry

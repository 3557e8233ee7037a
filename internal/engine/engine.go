// Package engine is the model runtime seen by the worker host: load weights
// from a source and run completions. It is a black box to the rest of
// modelhost.
package engine

import (
	"context"
)

// ProgressFunc receives download progress. total is zero when unknown.
type ProgressFunc func(loaded, total int64)

// CompletionOptions are the sampling settings for one completion.
type CompletionOptions struct {
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	TopK        int      `json:"top_k"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Engine loads and runs a model.
type Engine interface {
	// Load makes the model at source ready for completions.
	Load(ctx context.Context, source string, progress ProgressFunc) error

	// Complete runs prompt through the loaded model.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	// Close releases the loaded model.
	Close() error
}

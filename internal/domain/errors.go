package domain

import (
	"errors"
	"strings"
)

// Domain errors represent error conditions in the modelhost domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrTransient is returned when a destination context stayed unreachable
	// after every retry.
	ErrTransient = errors.New("modelhost: worker host unreachable")

	// ErrBusy is returned by the worker host when a load is already running.
	ErrBusy = errors.New("modelhost: worker host already loading")

	// ErrBusyNotConverged is returned when the worker host reported busy and
	// its status still did not report loaded after the recheck.
	ErrBusyNotConverged = errors.New("modelhost: worker host busy and did not report loaded")

	// ErrNotReady is returned by classify before the model is ready.
	ErrNotReady = errors.New("modelhost: model not ready yet, please wait")

	// ErrPollTimeout is returned by a client whose poll ceiling passed
	// without a terminal signal. The load may still be running.
	ErrPollTimeout = errors.New("modelhost: no ready or error signal before poll timeout")

	// ErrTextTooShort is returned for classification input under the minimum length.
	ErrTextTooShort = errors.New("modelhost: text too short")

	// ErrEmptyText is returned for blank classification input.
	ErrEmptyText = errors.New("modelhost: text is empty")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("modelhost: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("modelhost: not running")

	// ErrShutdownTimeout is returned when Stop() gives up waiting for the
	// service to drain.
	ErrShutdownTimeout = errors.New("modelhost: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("modelhost: invalid configuration")
)

// ModelLoadError is a substantive failure reported by the worker host. It
// is terminal: the lifecycle moves to Failed and only a reset retries. The
// reason is relayed to clients verbatim.
type ModelLoadError struct {
	Reason string
}

func (e *ModelLoadError) Error() string {
	if e.Reason == "" {
		return "modelhost: model load failed"
	}
	return e.Reason
}

// RemoteError is an error string relayed verbatim from another context.
// Kind is the matching sentinel, if any.
type RemoteError struct {
	Message string
	Kind    error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Kind }

// FromReason rebuilds an error from a relayed reason string. Reasons that
// start with a sentinel's text unwrap to that sentinel, so errors.Is keeps
// working across context boundaries.
func FromReason(reason string) error {
	for _, sentinel := range []error{ErrNotReady, ErrBusyNotConverged, ErrBusy, ErrTransient, ErrEmptyText, ErrTextTooShort} {
		text := sentinel.Error()
		if reason == text {
			return sentinel
		}
		if strings.HasPrefix(reason, text+":") {
			return &RemoteError{Message: reason, Kind: sentinel}
		}
	}
	return &RemoteError{Message: reason}
}

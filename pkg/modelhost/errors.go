package modelhost

import "github.com/bft-labs/modelhost/internal/domain"

// Errors returned by Host. Check them with errors.Is.
var (
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrNotReady         = domain.ErrNotReady
	ErrTransient        = domain.ErrTransient
	ErrBusyNotConverged = domain.ErrBusyNotConverged
	ErrEmptyText        = domain.ErrEmptyText
	ErrTextTooShort     = domain.ErrTextTooShort
)

// ModelLoadError is the terminal failure of a model load.
type ModelLoadError = domain.ModelLoadError

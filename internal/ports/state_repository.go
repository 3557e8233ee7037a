package ports

import (
	"context"

	"github.com/bft-labs/modelhost/internal/domain"
)

// StatusRepository persists the last lifecycle snapshot.
// Implementations persist state to disk (or other storage) atomically.
type StatusRepository interface {
	// Load retrieves the last saved snapshot.
	// Returns an empty snapshot and nil error if none exists.
	// Returns an error only for actual read failures.
	Load(ctx context.Context) (domain.StatusSnapshot, error)

	// Save persists the snapshot atomically.
	Save(ctx context.Context, snap domain.StatusSnapshot) error
}

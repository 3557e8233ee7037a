package app

import (
	"context"
	"time"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/internal/ports"
	"github.com/bft-labs/modelhost/pkg/lifecycle"
	"github.com/bft-labs/modelhost/pkg/log"
)

const recordTimeout = 5 * time.Second

// StatusRecorder persists every model lifecycle transition so the last
// known state can be read without a running coordinator.
type StatusRecorder struct {
	repo   ports.StatusRepository
	source func() string
	logger log.Logger
	now    func() time.Time
}

// NewStatusRecorder creates a recorder writing to repo. source reports the
// model source to record alongside the state; it may be nil.
func NewStatusRecorder(repo ports.StatusRepository, source func() string, logger log.Logger) *StatusRecorder {
	return &StatusRecorder{
		repo:   repo,
		source: source,
		logger: log.OrNoop(logger),
		now:    time.Now,
	}
}

// OnStateChange implements lifecycle.EventEmitter.
func (r *StatusRecorder) OnStateChange(_ lifecycle.State, cur lifecycle.Snapshot) {
	snap := domain.StatusSnapshot{
		State:     cur.State.String(),
		Progress:  cur.Progress,
		Reason:    cur.Reason,
		Attempt:   cur.AttemptID,
		UpdatedAt: r.now().UTC(),
	}
	if r.source != nil {
		snap.Source = r.source()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, snap); err != nil {
		r.logger.Error("failed to record status", log.Err(err))
	}
}

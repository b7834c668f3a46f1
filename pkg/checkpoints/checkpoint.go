package checkpoints

import (
	"context"
	"errors"
	"time"

	"github.com/avi3tal/agentflow/pkg/state"
)

// ErrNotFound is returned by Load when no live checkpoint exists for the
// thread identifier.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is a snapshot of one run's progress: the state after the last
// completed node, tagged with that node and the write time.
type Checkpoint struct {
	ThreadID  string
	State     state.State
	LastNode  string
	UpdatedAt time.Time
}

// Checkpointer persists run progress for resumable and human-in-the-loop
// execution. Save is an idempotent upsert keyed by thread identifier.
// Implementations must serialize Save/Load for a given thread identifier;
// distinct identifiers carry no ordering guarantee.
//
// Backends beyond memory (file, database) implement this same contract
// externally; the engine only ever sees these two operations.
type Checkpointer interface {
	Save(ctx context.Context, threadID string, s state.State, lastNode string) error
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
}

// Exists reports whether a live checkpoint is stored for the thread.
func Exists(ctx context.Context, cp Checkpointer, threadID string) (bool, error) {
	_, err := cp.Load(ctx, threadID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package checkpoints

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avi3tal/agentflow/pkg/state"
)

// DefaultTTL is the retention window for MemoryCheckpointer entries.
const DefaultTTL = time.Hour

// MemoryCheckpointer keeps one checkpoint per thread identifier in memory
// with a time-to-live measured from the last write. Entries past their TTL
// are treated as absent on Load and evicted lazily. Intended for development
// and tests; state is lost on restart.
type MemoryCheckpointer struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// MemoryOption configures a MemoryCheckpointer.
type MemoryOption func(*MemoryCheckpointer)

// WithTTL overrides the retention window.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryCheckpointer) {
		m.ttl = ttl
	}
}

// WithLogger sets the logger used for save/load/evict traces.
func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *MemoryCheckpointer) {
		m.logger = l
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCheckpointer) {
		m.now = now
	}
}

// NewMemoryCheckpointer creates an in-memory checkpointer.
func NewMemoryCheckpointer(opts ...MemoryOption) *MemoryCheckpointer {
	m := &MemoryCheckpointer{
		checkpoints: make(map[string]*Checkpoint),
		ttl:         DefaultTTL,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var _ Checkpointer = (*MemoryCheckpointer)(nil)

// Save upserts the checkpoint slot for threadID. The state is cloned so
// later writes by the run do not leak into the stored copy. The clone copies
// top-level keys only; handlers replace values rather than mutating them, so
// stored container values stay stable.
func (m *MemoryCheckpointer) Save(_ context.Context, threadID string, s state.State, lastNode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[threadID] = &Checkpoint{
		ThreadID:  threadID,
		State:     s.Clone(),
		LastNode:  lastNode,
		UpdatedAt: m.now(),
	}
	m.logger.Debug("checkpoint saved", "thread_id", threadID, "last_node", lastNode)
	return nil
}

// Load returns the live checkpoint for threadID, or ErrNotFound when the
// slot is empty or past its TTL. Expired entries are evicted on access.
func (m *MemoryCheckpointer) Load(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.checkpoints[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().Sub(cp.UpdatedAt) > m.ttl {
		delete(m.checkpoints, threadID)
		m.logger.Debug("checkpoint expired", "thread_id", threadID)
		return nil, ErrNotFound
	}

	m.logger.Debug("checkpoint loaded", "thread_id", threadID, "last_node", cp.LastNode)
	return &Checkpoint{
		ThreadID:  cp.ThreadID,
		State:     cp.State.Clone(),
		LastNode:  cp.LastNode,
		UpdatedAt: cp.UpdatedAt,
	}, nil
}

// Delete removes the checkpoint slot for threadID, if any.
func (m *MemoryCheckpointer) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, threadID)
	return nil
}

// Clear drops all checkpoints. For tests.
func (m *MemoryCheckpointer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = make(map[string]*Checkpoint)
}

// Size returns the number of stored checkpoints, including any not yet
// evicted expired entries.
func (m *MemoryCheckpointer) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkpoints)
}

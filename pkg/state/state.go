package state

// State is the opaque key-value container threaded through a graph run.
// The engine never interprets its contents beyond the reserved bookkeeping
// keys below; the schema is owned by the node handlers on either side.
type State map[string]any

// Reserved bookkeeping keys. Handlers should treat these as engine-owned.
const (
	// ThreadIDKey identifies a resumable run's checkpoint lineage.
	ThreadIDKey = "thread_id"

	// CurrentNodeKey records the node the engine is visiting.
	CurrentNodeKey = "_current_node"

	// StatusesKey holds the per-node status record for the run.
	StatusesKey = "_node_statuses"

	// ErrorKey carries the failure cause into a failure-redirect target.
	ErrorKey = "_error"
)

// New returns an empty state.
func New() State {
	return make(State)
}

// Clone returns a copy of the state. Top-level keys are copied; values are
// shared, so handlers that hand a state to another run must not mutate
// values they previously returned.
func (s State) Clone() State {
	if s == nil {
		return New()
	}
	c := make(State, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Merge overlays other onto a copy of s and returns the result. Keys in
// other win on conflict. Neither input is mutated.
func (s State) Merge(other State) State {
	merged := s.Clone()
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Get returns the value for key and whether it was present.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// GetString returns the string value for key, or "" when absent or not a
// string.
func (s State) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// ThreadID returns the caller-supplied thread identifier, if any.
func (s State) ThreadID() string {
	return s.GetString(ThreadIDKey)
}

// WithThreadID returns a copy of the state tagged with the given thread
// identifier.
func (s State) WithThreadID(id string) State {
	c := s.Clone()
	c[ThreadIDKey] = id
	return c
}

package graph

import "github.com/avi3tal/agentflow/pkg/state"

// Status is the execution status of one node within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks nodes never visited on the chosen path.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status admits no further transitions within
// the same run.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Statuses extracts the per-node status record from a run's state. It
// returns nil when the state carries none.
func Statuses(s state.State) map[string]Status {
	m, _ := s[state.StatusesKey].(map[string]Status)
	return m
}

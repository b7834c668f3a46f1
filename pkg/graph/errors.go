package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNode is returned when adding a node whose name is taken.
	ErrDuplicateNode = errors.New("node with this name already exists")

	// ErrUnknownNode is returned when referencing a non-existent node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoEntryPoint is returned when running a graph with no entry point.
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEdgeExists is returned when a node already has an outgoing edge.
	// A node holds at most one routing decision: one unconditional edge or
	// one conditional edge.
	ErrEdgeExists = errors.New("node already has an outgoing edge")

	// ErrNoOutgoingEdge is returned when a non-terminal node has no edge to
	// follow.
	ErrNoOutgoingEdge = errors.New("no outgoing edge")

	// ErrStepLimitExceeded is the kind wrapped by StepLimitError.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// ConfigurationError reports a structural problem with the graph: duplicate
// or missing nodes, conflicting or missing edges, invalid conditional
// targets. Configuration errors are fatal and never retried.
type ConfigurationError struct {
	// Op is the operation that failed, e.g. "AddEdge" or "route".
	Op string
	// Node is the node involved, if any.
	Node string
	// Err is the underlying error.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph configuration: %s: node %q: %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("graph configuration: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(op, node string, err error) error {
	return &ConfigurationError{Op: op, Node: node, Err: err}
}

// NodeExecutionError reports an unrecovered handler failure. It carries the
// node, the number of attempts made, and the last failure, so a run can be
// diagnosed without re-running it.
type NodeExecutionError struct {
	Node     string
	Attempts int
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed after %d attempt(s): %v", e.Node, e.Attempts, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// StepLimitError reports that a run exceeded its configured node-visit
// budget. It unwraps to ErrStepLimitExceeded.
type StepLimitError struct {
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("%v: limit %d", ErrStepLimitExceeded, e.Limit)
}

func (e *StepLimitError) Unwrap() error {
	return ErrStepLimitExceeded
}

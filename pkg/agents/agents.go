// Package agents provides handler adapters for the external collaborators
// that sit at the engine's boundary. The engine has no special knowledge of
// any of them; each one is just a capability satisfying the node handler
// contract.
package agents

import (
	"context"

	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/state"
)

// Agent is a named unit of work pluggable into a graph as a node.
type Agent interface {
	Name() string
	Handler() graph.Handler
}

// Simple is a straightforward in-process function agent.
type Simple struct {
	name string
	fn   graph.Handler
}

// NewSimple wraps an inline function as an agent.
func NewSimple(name string, fn graph.Handler) *Simple {
	return &Simple{name: name, fn: fn}
}

func (a *Simple) Name() string {
	return a.name
}

func (a *Simple) Handler() graph.Handler {
	return a.fn
}

// Add registers the agent as a node on the graph.
func Add(g *graph.Graph, a Agent, opts ...graph.NodeOption) error {
	return g.AddNode(a.Name(), a.Handler(), opts...)
}

// Passthrough returns a handler that forwards the state unchanged. Useful
// as a join or staging node.
func Passthrough() graph.Handler {
	return func(_ context.Context, s state.State) (state.State, error) {
		return s, nil
	}
}

package subgraph

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/avi3tal/agentflow/pkg/checkpoints"
	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/state"
)

// Executor runs a wrapped graph as an isolated sub-step of a parent run.
// The child run owns its own state and, when checkpointing is enabled, its
// own thread identifier; the parent state is never mutated.
type Executor struct {
	graph        *graph.Graph
	checkpointer checkpoints.Checkpointer
	maxSteps     int
	logger       *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCheckpointer enables checkpointing for child runs. Each child run is
// tagged with a fresh thread identifier so sibling executions never share a
// checkpoint slot.
func WithCheckpointer(cp checkpoints.Checkpointer) Option {
	return func(e *Executor) {
		e.checkpointer = cp
	}
}

// WithMaxSteps bounds node visits for each child run.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		e.maxSteps = n
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor wraps a graph for isolated execution.
func NewExecutor(g *graph.Graph, opts ...Option) *Executor {
	e := &Executor{
		graph:  g,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Builder carves subgraphs out of a parent graph, so a slice of an existing
// pipeline can run in isolation under an Executor.
type Builder struct {
	parent *graph.Graph
}

// NewBuilder wraps the parent graph nodes are extracted from.
func NewBuilder(parent *graph.Graph) *Builder {
	return &Builder{parent: parent}
}

// Extract builds a new graph from the named subset of the parent's nodes,
// keeping their retry policies, failure redirects, and the edges that stay
// inside the subset. The parent graph is not modified.
func (b *Builder) Extract(names []string, entryPoint string) (*graph.Graph, error) {
	return b.parent.Extract(names, entryPoint)
}

// Options scopes what a child run sees and returns.
type Options struct {
	// InheritKeys are copied from Parent into the child state; keys in the
	// initial state win on conflict.
	InheritKeys []string

	// ReturnKeys filters the child's final state down to the keys handed
	// back to the caller. Empty returns the whole final state.
	ReturnKeys []string

	// Parent is the parent state inherited from. It is read, never written.
	Parent state.State
}

// Result is one slot of a parallel execution: the filtered child state or
// the error that stopped it.
type Result struct {
	State state.State
	Err   error
}

// Execute runs the wrapped graph on an isolated child state and returns the
// filtered result. The caller merges the result into the parent state after
// return; nothing flows back implicitly.
func (e *Executor) Execute(ctx context.Context, initial state.State, opts Options) (state.State, error) {
	child := state.New()
	for _, key := range opts.InheritKeys {
		if v, ok := opts.Parent.Get(key); ok {
			child[key] = v
		}
	}
	child = child.Merge(initial)

	var runOpts []graph.RunOption
	if e.checkpointer != nil {
		runOpts = append(runOpts,
			graph.WithCheckpointer(e.checkpointer),
			graph.WithThreadID(uuid.New().String()),
		)
	} else {
		// A thread identifier inherited from the parent must not leak a
		// checkpoint lineage into the child run.
		delete(child, state.ThreadIDKey)
	}
	if e.maxSteps > 0 {
		runOpts = append(runOpts, graph.WithMaxSteps(e.maxSteps))
	}
	runOpts = append(runOpts, graph.WithLogger(e.logger))

	e.logger.Debug("executing subgraph", "graph", e.graph.Name(), "keys", len(child))
	final, err := e.graph.Run(ctx, child, runOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "subgraph %q", e.graph.Name())
	}

	if len(opts.ReturnKeys) == 0 {
		return final, nil
	}
	filtered := state.New()
	for _, key := range opts.ReturnKeys {
		if v, ok := final.Get(key); ok {
			filtered[key] = v
		}
	}
	return filtered, nil
}

// ExecuteParallel runs one isolated execution per initial state
// concurrently. Each slot's failure is captured in its Result; one failing
// execution never cancels or corrupts the others. Results are returned in
// input order regardless of completion order.
func (e *Executor) ExecuteParallel(ctx context.Context, initials []state.State, opts Options) []Result {
	results := make([]Result, len(initials))

	var wg sync.WaitGroup
	for i, initial := range initials {
		wg.Add(1)
		go func(slot int, initial state.State) {
			defer wg.Done()
			out, err := e.Execute(ctx, initial, opts)
			results[slot] = Result{State: out, Err: err}
		}(i, initial)
	}
	wg.Wait()

	return results
}

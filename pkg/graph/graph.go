package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/avi3tal/agentflow/pkg/middleware"
	"github.com/avi3tal/agentflow/pkg/retry"
	"github.com/avi3tal/agentflow/pkg/state"
)

// END is the terminal marker. Routing to END stops the run and returns the
// final state.
const END = "END"

// Handler is the node handler contract: transform the state, possibly
// failing with an arbitrary failure kind. The engine only classifies the
// kind against a node's retry policy.
type Handler func(ctx context.Context, s state.State) (state.State, error)

// Router is the conditional routing contract: inspect the state and return
// the next node name, or END.
type Router func(ctx context.Context, s state.State) string

// nodeSpec is a registered node: handler plus optional retry policy and
// failure-redirect target.
type nodeSpec struct {
	Name        string
	Handler     Handler
	RetryPolicy *retry.Policy
	OnFailure   string
}

// edge is a routing decision out of a node: a fixed target or a router.
type edge struct {
	To    string
	Route Router
}

// Graph is a directed graph of named steps with conditional routing,
// retries, checkpointing and middleware. Build it with AddNode/AddEdge/
// SetEntryPoint, then call Run.
//
// A Graph is not safe for concurrent mutation; build it fully before
// running. Concurrent Run calls on a built graph are safe as long as each
// run owns its state value.
type Graph struct {
	id         string
	name       string
	nodes      map[string]nodeSpec
	edges      map[string]edge
	entryPoint string
	middleware *middleware.Stack
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithGraphID overrides the generated graph identifier.
func WithGraphID(id string) Option {
	return func(g *Graph) {
		g.id = id
	}
}

// WithMiddleware seeds the graph's middleware stack, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(g *Graph) {
		g.middleware.Use(mws...)
	}
}

// New creates an empty graph.
func New(name string, opts ...Option) *Graph {
	if name == "" {
		name = "graph"
	}
	g := &Graph{
		id:         uuid.New().String(),
		name:       strings.ReplaceAll(name, " ", "-"),
		nodes:      make(map[string]nodeSpec),
		edges:      make(map[string]edge),
		middleware: middleware.NewStack(),
	}
	for _, o := range opts {
		o(g)
	}
	g.id = fmt.Sprintf("%s-%s", g.name, g.id)
	return g
}

// ID returns the graph identifier.
func (g *Graph) ID() string {
	return g.id
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// NodeOption configures a node at registration time.
type NodeOption func(*nodeSpec)

// WithRetryPolicy attaches a retry policy to the node.
func WithRetryPolicy(p *retry.Policy) NodeOption {
	return func(n *nodeSpec) {
		n.RetryPolicy = p
	}
}

// WithOnFailure sets a failure-redirect target: when the node fails past
// its retry budget, the run transitions to the target with the failure
// cause annotated in the state instead of aborting.
func WithOnFailure(target string) NodeOption {
	return func(n *nodeSpec) {
		n.OnFailure = target
	}
}

// AddNode registers a node. The name must be unique within the graph.
func (g *Graph) AddNode(name string, h Handler, opts ...NodeOption) error {
	if name == "" || name == END {
		return NewConfigurationError("AddNode", name, fmt.Errorf("invalid node name %q", name))
	}
	if h == nil {
		return NewConfigurationError("AddNode", name, fmt.Errorf("nil handler"))
	}
	if _, exists := g.nodes[name]; exists {
		return NewConfigurationError("AddNode", name, ErrDuplicateNode)
	}

	n := nodeSpec{Name: name, Handler: h}
	for _, o := range opts {
		o(&n)
	}
	g.nodes[name] = n
	return nil
}

// AddEdge adds an unconditional edge. The source must be registered and
// must not already carry an edge; the target must be registered or END.
func (g *Graph) AddEdge(from, to string) error {
	if _, exists := g.nodes[from]; !exists {
		return NewConfigurationError("AddEdge", from, ErrUnknownNode)
	}
	if to != END {
		if _, exists := g.nodes[to]; !exists {
			return NewConfigurationError("AddEdge", to, ErrUnknownNode)
		}
	}
	if _, exists := g.edges[from]; exists {
		return NewConfigurationError("AddEdge", from, ErrEdgeExists)
	}

	g.edges[from] = edge{To: to}
	return nil
}

// AddConditionalEdge adds a routing function out of a node. The target is
// data-dependent, so it is validated only when the route is evaluated.
func (g *Graph) AddConditionalEdge(from string, route Router) error {
	if _, exists := g.nodes[from]; !exists {
		return NewConfigurationError("AddConditionalEdge", from, ErrUnknownNode)
	}
	if route == nil {
		return NewConfigurationError("AddConditionalEdge", from, fmt.Errorf("nil routing function"))
	}
	if _, exists := g.edges[from]; exists {
		return NewConfigurationError("AddConditionalEdge", from, ErrEdgeExists)
	}

	g.edges[from] = edge{Route: route}
	return nil
}

// SetEntryPoint sets the node a fresh run starts from.
func (g *Graph) SetEntryPoint(name string) error {
	if _, exists := g.nodes[name]; !exists {
		return NewConfigurationError("SetEntryPoint", name, ErrUnknownNode)
	}
	g.entryPoint = name
	return nil
}

// Use appends middleware to the graph's stack.
func (g *Graph) Use(mws ...middleware.Middleware) {
	g.middleware.Use(mws...)
}

// HasNode reports whether a node is registered.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Nodes returns the registered node names in sorted order.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract copies the named subset of nodes into a new graph: each node keeps
// its handler, retry policy and failure redirect, and edges survive when
// their target stays inside the subset or is END. Conditional edges are
// carried as-is since their targets are data-dependent. Routing decisions
// leading out of the subset are dropped, so the caller may need to add a
// terminating edge before running the result.
func (g *Graph) Extract(names []string, entryPoint string) (*Graph, error) {
	included := make(map[string]bool, len(names))
	for _, name := range names {
		included[name] = true
	}

	sub := New(g.name + "-sub")
	for _, name := range names {
		spec, ok := g.nodes[name]
		if !ok {
			return nil, NewConfigurationError("Extract", name, ErrUnknownNode)
		}
		var opts []NodeOption
		if spec.RetryPolicy != nil {
			opts = append(opts, WithRetryPolicy(spec.RetryPolicy))
		}
		if spec.OnFailure != "" {
			opts = append(opts, WithOnFailure(spec.OnFailure))
		}
		if err := sub.AddNode(name, spec.Handler, opts...); err != nil {
			return nil, err
		}
	}

	for _, name := range sub.Nodes() {
		e, ok := g.edges[name]
		if !ok {
			continue
		}
		if e.Route != nil {
			if err := sub.AddConditionalEdge(name, e.Route); err != nil {
				return nil, err
			}
			continue
		}
		if e.To == END || included[e.To] {
			if err := sub.AddEdge(name, e.To); err != nil {
				return nil, err
			}
		}
	}

	if err := sub.SetEntryPoint(entryPoint); err != nil {
		return nil, err
	}
	return sub, nil
}

// Validate checks the graph structure: entry point set, every node routable,
// failure-redirect targets registered. All problems found are reported
// together. Conditional targets are data-dependent and remain checked at
// evaluation time.
func (g *Graph) Validate() error {
	var problems []error

	if g.entryPoint == "" {
		problems = append(problems, NewConfigurationError("Validate", "", ErrNoEntryPoint))
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		problems = append(problems, NewConfigurationError("Validate", g.entryPoint, ErrUnknownNode))
	}

	for _, name := range g.Nodes() {
		n := g.nodes[name]
		if _, ok := g.edges[name]; !ok {
			problems = append(problems, NewConfigurationError("Validate", name, ErrNoOutgoingEdge))
		}
		if n.OnFailure != "" && n.OnFailure != END {
			if _, ok := g.nodes[n.OnFailure]; !ok {
				problems = append(problems, NewConfigurationError("Validate", name,
					fmt.Errorf("%w: on-failure target %q", ErrUnknownNode, n.OnFailure)))
			}
		}
	}
	return errors.Join(problems...)
}

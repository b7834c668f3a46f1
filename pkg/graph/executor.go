package graph

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/avi3tal/agentflow/pkg/checkpoints"
	"github.com/avi3tal/agentflow/pkg/state"
)

// RunConfig is the per-run configuration assembled from RunOptions.
type RunConfig struct {
	// ThreadID tags the run's checkpoint lineage. When empty, the thread
	// identifier already present in the initial state is used; a run with
	// neither is never checkpointed.
	ThreadID string

	// MaxSteps bounds total node visits. Zero means unbounded; cycles are
	// legal, so callers running cyclic graphs should set a limit.
	MaxSteps int

	// Checkpointer persists progress after every completed node.
	Checkpointer checkpoints.Checkpointer

	// Logger receives run traces. Defaults to slog.Default().
	Logger *slog.Logger
}

// RunOption configures a single Run call.
type RunOption func(*RunConfig)

// WithThreadID tags the run with a thread identifier for checkpointing.
func WithThreadID(id string) RunOption {
	return func(c *RunConfig) {
		c.ThreadID = id
	}
}

// WithMaxSteps bounds total node visits for the run.
func WithMaxSteps(n int) RunOption {
	return func(c *RunConfig) {
		c.MaxSteps = n
	}
}

// WithCheckpointer enables progress persistence for the run.
func WithCheckpointer(cp checkpoints.Checkpointer) RunOption {
	return func(c *RunConfig) {
		c.Checkpointer = cp
	}
}

// WithLogger sets the run's logger.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *RunConfig) {
		c.Logger = l
	}
}

// Run executes the graph. A fresh run starts at the entry point with the
// initial state; when a checkpointer is configured and the thread identifier
// has a live checkpoint, the run resumes at the successor of the
// last-completed node instead, so completed nodes are never re-executed.
//
// Run returns the final state on reaching END, or the state as of the last
// whole node together with one of the error kinds in errors.go. Cancellation
// is checked between nodes and surfaces the wrapped context error.
func (g *Graph) Run(ctx context.Context, initial state.State, opts ...RunOption) (state.State, error) {
	cfg := RunConfig{Logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	if g.entryPoint == "" {
		return nil, NewConfigurationError("Run", "", ErrNoEntryPoint)
	}

	st := initial.Clone()
	if cfg.ThreadID != "" {
		st[state.ThreadIDKey] = cfg.ThreadID
	}
	threadID := st.ThreadID()

	statuses := make(map[string]Status, len(g.nodes))
	for name := range g.nodes {
		statuses[name] = StatusPending
	}

	current := g.entryPoint
	if cfg.Checkpointer != nil && threadID != "" {
		resumed, next, err := g.resume(ctx, cfg, threadID, st)
		if err != nil {
			return nil, err
		}
		if resumed != nil {
			st = resumed
			for name, status := range Statuses(st) {
				statuses[name] = status
			}
			if next == END {
				return g.finish(st, statuses), nil
			}
			current = next
		}
	}

	steps := 0
	for current != END {
		select {
		case <-ctx.Done():
			return st, errors.Wrapf(ctx.Err(), "run cancelled before node %q", current)
		default:
		}

		if cfg.MaxSteps > 0 && steps >= cfg.MaxSteps {
			return st, &StepLimitError{Limit: cfg.MaxSteps}
		}

		node, exists := g.nodes[current]
		if !exists {
			return st, NewConfigurationError("Run", current, ErrUnknownNode)
		}

		st[state.CurrentNodeKey] = current
		statuses[current] = StatusRunning
		st[state.StatusesKey] = snapshot(statuses)
		cfg.Logger.Debug("executing node", "graph", g.name, "node", current, "step", steps)

		st = g.middleware.ApplyPre(ctx, st)
		out, attempts, err := g.executeNode(ctx, node, st, cfg.Logger)
		steps++

		if err != nil {
			statuses[current] = StatusFailed
			st[state.StatusesKey] = snapshot(statuses)

			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return st, errors.Wrapf(err, "run cancelled in node %q", current)
			}
			if node.OnFailure != "" {
				cfg.Logger.Warn("node failed, redirecting",
					"node", current, "attempts", attempts, "target", node.OnFailure, "error", err)
				st[state.ErrorKey] = err.Error()
				current = node.OnFailure
				continue
			}
			cfg.Logger.Error("node failed", "node", current, "attempts", attempts, "error", err)
			return st, &NodeExecutionError{Node: current, Attempts: attempts, Err: err}
		}

		st = out.Clone()
		st[state.CurrentNodeKey] = current
		if threadID != "" {
			st[state.ThreadIDKey] = threadID
		}
		st = g.middleware.ApplyPost(ctx, st)
		statuses[current] = StatusSucceeded
		st[state.StatusesKey] = snapshot(statuses)

		if cfg.Checkpointer != nil && threadID != "" {
			if err := cfg.Checkpointer.Save(ctx, threadID, st, current); err != nil {
				return st, errors.Wrapf(err, "save checkpoint after node %q", current)
			}
		}

		next, err := g.nextNode(ctx, current, st)
		if err != nil {
			return st, err
		}
		current = next
	}

	return g.finish(st, statuses), nil
}

// resume loads the thread's checkpoint, if any, and routes from the
// last-completed node. It returns (nil, "", nil) when there is nothing to
// resume from.
func (g *Graph) resume(ctx context.Context, cfg RunConfig, threadID string, st state.State) (state.State, string, error) {
	cp, err := cfg.Checkpointer.Load(ctx, threadID)
	if stderrors.Is(err, checkpoints.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "load checkpoint for thread %q", threadID)
	}

	// Checkpointed values win over the caller's initial state; keys the
	// checkpoint never saw survive from the initial state.
	merged := st.Merge(cp.State)
	next, routeErr := g.nextNode(ctx, cp.LastNode, merged)
	if routeErr != nil {
		return nil, "", routeErr
	}
	cfg.Logger.Info("resumed from checkpoint",
		"graph", g.name, "thread_id", threadID, "last_node", cp.LastNode, "next", next)
	return merged, next, nil
}

// executeNode invokes the handler under the node's retry policy. It returns
// the handler output and the number of attempts made.
func (g *Graph) executeNode(ctx context.Context, node nodeSpec, st state.State, logger *slog.Logger) (state.State, int, error) {
	attempt := 1
	for {
		out, err := node.Handler(ctx, st)
		if err == nil {
			return out, attempt, nil
		}
		if node.RetryPolicy == nil || !node.RetryPolicy.ShouldRetry(attempt, err) {
			return nil, attempt, err
		}

		delay := node.RetryPolicy.DelayFor(attempt)
		logger.Warn("node attempt failed, retrying",
			"node", node.Name,
			"attempt", attempt,
			"max_attempts", node.RetryPolicy.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(delay):
		}
		attempt++
	}
}

// nextNode resolves a node's single routing decision against the state.
func (g *Graph) nextNode(ctx context.Context, current string, st state.State) (string, error) {
	e, ok := g.edges[current]
	if !ok {
		return "", NewConfigurationError("route", current, ErrNoOutgoingEdge)
	}
	if e.Route == nil {
		return e.To, nil
	}

	target := e.Route(ctx, st)
	if target == END {
		return END, nil
	}
	if _, exists := g.nodes[target]; !exists {
		return "", NewConfigurationError("route", current,
			errors.Wrapf(ErrUnknownNode, "conditional target %q", target))
	}
	return target, nil
}

// finish marks never-visited nodes skipped and writes the final status
// record into the state.
func (g *Graph) finish(st state.State, statuses map[string]Status) state.State {
	for name, status := range statuses {
		if !status.Terminal() {
			statuses[name] = StatusSkipped
		}
	}
	st[state.StatusesKey] = snapshot(statuses)
	return st
}

func snapshot(statuses map[string]Status) map[string]Status {
	c := make(map[string]Status, len(statuses))
	for k, v := range statuses {
		c[k] = v
	}
	return c
}

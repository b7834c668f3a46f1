package subgraph_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avi3tal/agentflow/pkg/checkpoints"
	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/retry"
	"github.com/avi3tal/agentflow/pkg/state"
	"github.com/avi3tal/agentflow/pkg/subgraph"
)

// analysisGraph answers by combining the query with the inherited user, and
// writes a scratch key that must never escape the child run.
func analysisGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("analysis")
	require.NoError(t, g.AddNode("analyze", func(_ context.Context, s state.State) (state.State, error) {
		out := s.Clone()
		out["result"] = fmt.Sprintf("%s for %s", s.GetString("query"), s.GetString("user"))
		out["scratch"] = "internal working data"
		return out, nil
	}))
	require.NoError(t, g.AddEdge("analyze", graph.END))
	require.NoError(t, g.SetEntryPoint("analyze"))
	return g
}

func TestExecuteInheritAndReturnKeys(t *testing.T) {
	t.Parallel()
	exec := subgraph.NewExecutor(analysisGraph(t))

	parent := state.State{"user": "ada", "secret": "do not share"}
	result, err := exec.Execute(context.Background(),
		state.State{"query": "TP53 expression"},
		subgraph.Options{
			InheritKeys: []string{"user"},
			ReturnKeys:  []string{"result"},
			Parent:      parent,
		})
	require.NoError(t, err)

	require.Equal(t, "TP53 expression for ada", result.GetString("result"))
	// only the listed return keys come back
	require.NotContains(t, result, "scratch")
	require.NotContains(t, result, "query")
	require.NotContains(t, result, "user")
}

func TestExecuteParentNeverMutated(t *testing.T) {
	t.Parallel()
	exec := subgraph.NewExecutor(analysisGraph(t))

	parent := state.State{"user": "ada", "untouched": 7}
	_, err := exec.Execute(context.Background(),
		state.State{"query": "q"},
		subgraph.Options{
			InheritKeys: []string{"user"},
			ReturnKeys:  []string{"result"},
			Parent:      parent,
		})
	require.NoError(t, err)
	require.Equal(t, state.State{"user": "ada", "untouched": 7}, parent)
}

func TestExecuteInitialStateWinsOverInherited(t *testing.T) {
	t.Parallel()
	exec := subgraph.NewExecutor(analysisGraph(t))

	result, err := exec.Execute(context.Background(),
		state.State{"query": "q", "user": "override"},
		subgraph.Options{
			InheritKeys: []string{"user"},
			ReturnKeys:  []string{"result"},
			Parent:      state.State{"user": "parent-user"},
		})
	require.NoError(t, err)
	require.Equal(t, "q for override", result.GetString("result"))
}

func TestExecuteWithoutReturnKeysReturnsFinalState(t *testing.T) {
	t.Parallel()
	exec := subgraph.NewExecutor(analysisGraph(t))

	result, err := exec.Execute(context.Background(),
		state.State{"query": "q", "user": "u"},
		subgraph.Options{})
	require.NoError(t, err)
	require.Contains(t, result, "result")
	require.Contains(t, result, "scratch")
}

func TestExecuteFailurePropagatesError(t *testing.T) {
	t.Parallel()
	g := graph.New("doomed")
	require.NoError(t, g.AddNode("boom", func(context.Context, state.State) (state.State, error) {
		return nil, errors.New("child failed")
	}))
	require.NoError(t, g.AddEdge("boom", graph.END))
	require.NoError(t, g.SetEntryPoint("boom"))

	exec := subgraph.NewExecutor(g)
	_, err := exec.Execute(context.Background(), state.New(), subgraph.Options{})
	require.Error(t, err)

	var execErr *graph.NodeExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, "boom", execErr.Node)
}

func TestChildRunsOwnCheckpointThread(t *testing.T) {
	t.Parallel()
	cp := checkpoints.NewMemoryCheckpointer()
	exec := subgraph.NewExecutor(analysisGraph(t), subgraph.WithCheckpointer(cp))

	parentThread := "parent-thread"
	require.NoError(t, cp.Save(context.Background(), parentThread, state.State{"marker": "parent"}, "somewhere"))

	_, err := exec.Execute(context.Background(),
		state.State{"query": "q", "user": "u", state.ThreadIDKey: parentThread},
		subgraph.Options{})
	require.NoError(t, err)

	// parent slot untouched, child saved under its own thread id
	parentCp, err := cp.Load(context.Background(), parentThread)
	require.NoError(t, err)
	require.Equal(t, "parent", parentCp.State.GetString("marker"))
	require.Equal(t, 2, cp.Size())
}

func addOne(_ context.Context, s state.State) (state.State, error) {
	out := s.Clone()
	n, _ := out["value"].(int)
	out["value"] = n + 1
	return out, nil
}

func multiplyTwo(_ context.Context, s state.State) (state.State, error) {
	out := s.Clone()
	n, _ := out["value"].(int)
	out["value"] = n * 2
	return out, nil
}

// pipelineGraph is a three-step a -> b -> c chain used as a parent for
// extraction.
func pipelineGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("pipeline")
	require.NoError(t, g.AddNode("a", addOne))
	require.NoError(t, g.AddNode("b", multiplyTwo))
	require.NoError(t, g.AddNode("c", addOne))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", graph.END))
	require.NoError(t, g.SetEntryPoint("a"))
	return g
}

func TestExtractNodeSubset(t *testing.T) {
	t.Parallel()
	sub, err := subgraph.NewBuilder(pipelineGraph(t)).Extract([]string{"a", "b"}, "a")
	require.NoError(t, err)

	require.True(t, sub.HasNode("a"))
	require.True(t, sub.HasNode("b"))
	require.False(t, sub.HasNode("c"))
}

func TestExtractPreservesInteriorEdges(t *testing.T) {
	t.Parallel()
	sub, err := subgraph.NewBuilder(pipelineGraph(t)).Extract([]string{"a", "b"}, "a")
	require.NoError(t, err)

	targets := make(map[string]string)
	for _, e := range sub.Describe().Edges {
		targets[e.From] = e.To
	}
	require.Equal(t, "b", targets["a"])
	// b's edge led out of the subset and was dropped
	require.NotContains(t, targets, "b")
}

func TestExtractUnknownNode(t *testing.T) {
	t.Parallel()
	_, err := subgraph.NewBuilder(pipelineGraph(t)).Extract([]string{"a", "nonexistent"}, "a")
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestExtractEntryPointOutsideSubset(t *testing.T) {
	t.Parallel()
	_, err := subgraph.NewBuilder(pipelineGraph(t)).Extract([]string{"a", "b"}, "c")
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestExtractedGraphRuns(t *testing.T) {
	t.Parallel()
	sub, err := subgraph.NewBuilder(pipelineGraph(t)).Extract([]string{"a", "b"}, "a")
	require.NoError(t, err)
	require.NoError(t, sub.AddEdge("b", graph.END))

	final, err := sub.Run(context.Background(), state.State{"value": 5})
	require.NoError(t, err)
	require.Equal(t, 12, final["value"])
}

func TestExtractKeepsNodeOptions(t *testing.T) {
	t.Parallel()
	parent := graph.New("flaky-parent")
	var calls int
	policy := retry.NewPolicy(
		retry.WithMaxAttempts(3),
		retry.WithInitialInterval(time.Millisecond),
	)
	require.NoError(t, parent.AddNode("flaky", func(_ context.Context, s state.State) (state.State, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return s, nil
	}, graph.WithRetryPolicy(policy), graph.WithOnFailure("cleanup")))
	require.NoError(t, parent.AddNode("cleanup", func(_ context.Context, s state.State) (state.State, error) {
		return s, nil
	}))
	require.NoError(t, parent.AddEdge("flaky", graph.END))
	require.NoError(t, parent.AddEdge("cleanup", graph.END))
	require.NoError(t, parent.SetEntryPoint("flaky"))

	sub, err := subgraph.NewBuilder(parent).Extract([]string{"flaky", "cleanup"}, "flaky")
	require.NoError(t, err)
	require.NoError(t, sub.Validate())

	_, err = sub.Run(context.Background(), state.New())
	require.NoError(t, err)
	// retry policy carried over: two failures absorbed
	require.Equal(t, 3, calls)

	redirects := make(map[string]string)
	for _, e := range sub.Describe().Edges {
		redirects[e.From] = e.OnFailure
	}
	require.Equal(t, "cleanup", redirects["flaky"])
}

func TestExecuteParallelIsolatesFailures(t *testing.T) {
	t.Parallel()
	g := graph.New("flaky")
	require.NoError(t, g.AddNode("work", func(_ context.Context, s state.State) (state.State, error) {
		if s.GetString("query") == "bad" {
			return nil, errors.New("slot failure")
		}
		out := s.Clone()
		out["result"] = "ok: " + s.GetString("query")
		return out, nil
	}))
	require.NoError(t, g.AddEdge("work", graph.END))
	require.NoError(t, g.SetEntryPoint("work"))

	exec := subgraph.NewExecutor(g)
	results := exec.ExecuteParallel(context.Background(),
		[]state.State{
			{"query": "first"},
			{"query": "bad"},
			{"query": "third"},
		},
		subgraph.Options{ReturnKeys: []string{"result"}})

	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.Equal(t, "ok: first", results[0].State.GetString("result"))

	require.Error(t, results[1].Err)
	require.Nil(t, results[1].State)

	require.NoError(t, results[2].Err)
	require.Equal(t, "ok: third", results[2].State.GetString("result"))
}

func TestExecuteParallelResultsInInputOrder(t *testing.T) {
	t.Parallel()
	g := graph.New("ordered")
	require.NoError(t, g.AddNode("echo", func(_ context.Context, s state.State) (state.State, error) {
		out := s.Clone()
		out["result"] = s.GetString("query")
		return out, nil
	}))
	require.NoError(t, g.AddEdge("echo", graph.END))
	require.NoError(t, g.SetEntryPoint("echo"))

	exec := subgraph.NewExecutor(g)
	inputs := make([]state.State, 8)
	for i := range inputs {
		inputs[i] = state.State{"query": fmt.Sprintf("q%d", i)}
	}

	results := exec.ExecuteParallel(context.Background(), inputs, subgraph.Options{})
	require.Len(t, results, len(inputs))
	for i, r := range results {
		require.NoError(t, r.Err)
		require.Equal(t, fmt.Sprintf("q%d", i), r.State.GetString("result"))
	}
}

func TestParallelRunsDoNotShareState(t *testing.T) {
	t.Parallel()
	g := graph.New("isolated")
	require.NoError(t, g.AddNode("tag", func(_ context.Context, s state.State) (state.State, error) {
		out := s.Clone()
		out["seen"] = s.GetString("query")
		return out, nil
	}))
	require.NoError(t, g.AddEdge("tag", graph.END))
	require.NoError(t, g.SetEntryPoint("tag"))

	exec := subgraph.NewExecutor(g)
	results := exec.ExecuteParallel(context.Background(),
		[]state.State{{"query": "a"}, {"query": "b"}},
		subgraph.Options{})

	require.Equal(t, "a", results[0].State.GetString("seen"))
	require.Equal(t, "b", results[1].State.GetString("seen"))
	require.Equal(t, "a", results[0].State.GetString("query"))
	require.Equal(t, "b", results[1].State.GetString("query"))
}

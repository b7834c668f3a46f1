// A planning loop fanning out over parallel subgraph executions: a fixed
// plan of research tasks is executed one todo at a time, and a final step
// runs three isolated analyses concurrently.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/planning"
	"github.com/avi3tal/agentflow/pkg/state"
	"github.com/avi3tal/agentflow/pkg/subgraph"
)

func analysisGraph() (*graph.Graph, error) {
	g := graph.New("analysis")
	if err := g.AddNode("analyze", func(_ context.Context, s state.State) (state.State, error) {
		out := s.Clone()
		out["finding"] = fmt.Sprintf("%s (for %s)", strings.ToUpper(s.GetString("sample")), s.GetString("study"))
		return out, nil
	}); err != nil {
		return nil, err
	}
	if err := g.AddEdge("analyze", graph.END); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint("analyze"); err != nil {
		return nil, err
	}
	return g, nil
}

func main() {
	ctx := context.Background()

	loop := planning.NewLoop(planning.WithMaxIterations(10))
	if _, err := loop.SetTodos([]string{
		"collect cohort metadata",
		"normalize expression counts",
		"run differential analysis",
	}); err != nil {
		log.Fatalf("set todos: %v", err)
	}

	if err := loop.Run(ctx, func(_ context.Context, todo planning.Todo) (map[string]any, error) {
		fmt.Printf("working on: %s\n", todo.Description)
		return map[string]any{"done": todo.Description}, nil
	}); err != nil {
		log.Fatalf("plan run: %v", err)
	}
	fmt.Printf("plan finished: %d completed, %d failed\n\n",
		loop.Summary()[planning.TodoCompleted], loop.Summary()[planning.TodoFailed])

	g, err := analysisGraph()
	if err != nil {
		log.Fatalf("build analysis graph: %v", err)
	}

	exec := subgraph.NewExecutor(g)
	results := exec.ExecuteParallel(ctx,
		[]state.State{
			{"sample": "tumor-a"},
			{"sample": "tumor-b"},
			{"sample": "control"},
		},
		subgraph.Options{
			InheritKeys: []string{"study"},
			ReturnKeys:  []string{"finding"},
			Parent:      state.State{"study": "TP53 cohort"},
		})

	for i, r := range results {
		if r.Err != nil {
			fmt.Printf("analysis %d failed: %v\n", i, r.Err)
			continue
		}
		fmt.Printf("analysis %d: %s\n", i, r.State.GetString("finding"))
	}
}

// A linear question-answering pipeline: parse the question, fetch supporting
// data with retries, then build the response. Demonstrates checkpointing,
// retry policies, conditional routing and the logging middleware.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/avi3tal/agentflow/pkg/checkpoints"
	"github.com/avi3tal/agentflow/pkg/config"
	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/middleware"
	"github.com/avi3tal/agentflow/pkg/retry"
	"github.com/avi3tal/agentflow/pkg/state"
)

var errUpstreamFlaky = errors.New("upstream temporarily unavailable")

func buildGraph(defaultPolicy *retry.Policy) (*graph.Graph, error) {
	fetchCalls := 0

	g := graph.New("qa-pipeline", graph.WithMiddleware(middleware.NewLogging(nil)))

	if err := g.AddNode("parse", func(_ context.Context, s state.State) (state.State, error) {
		out := s.Clone()
		out["topic"] = "expression of " + s.GetString("query")
		return out, nil
	}); err != nil {
		return nil, err
	}

	// fetch fails twice before succeeding; the retry policy absorbs both
	// failures.
	if err := g.AddNode("fetch", func(_ context.Context, s state.State) (state.State, error) {
		fetchCalls++
		if fetchCalls < 3 {
			return nil, errUpstreamFlaky
		}
		out := s.Clone()
		out["data"] = fmt.Sprintf("records about %s", s.GetString("topic"))
		return out, nil
	}, graph.WithRetryPolicy(defaultPolicy.WithKinds(errUpstreamFlaky))); err != nil {
		return nil, err
	}

	if err := g.AddNode("respond", func(_ context.Context, s state.State) (state.State, error) {
		out := s.Clone()
		out["answer"] = "summary: " + s.GetString("data")
		return out, nil
	}); err != nil {
		return nil, err
	}

	if err := g.AddEdge("parse", "fetch"); err != nil {
		return nil, err
	}

	// skip the respond node when fetch produced nothing useful
	if err := g.AddConditionalEdge("fetch", func(_ context.Context, s state.State) string {
		if s.GetString("data") == "" {
			return graph.END
		}
		return "respond"
	}); err != nil {
		return nil, err
	}
	if err := g.AddEdge("respond", graph.END); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint("parse"); err != nil {
		return nil, err
	}
	return g, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("AGENTFLOW_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetLogLoggerLevel(cfg.SlogLevel())

	// fast backoff so the demo does not sit in time.After
	policy := cfg.RetryPolicy()
	policy = retry.NewPolicy(
		retry.WithMaxAttempts(policy.MaxAttempts),
		retry.WithInitialInterval(50*time.Millisecond),
		retry.WithMaxInterval(200*time.Millisecond),
	)

	g, err := buildGraph(policy)
	if err != nil {
		log.Fatalf("build graph: %v", err)
	}
	if err := g.Validate(); err != nil {
		log.Fatalf("validate graph: %v", err)
	}

	cp := checkpoints.NewMemoryCheckpointer(checkpoints.WithTTL(cfg.CheckpointTTL.Std()))

	start := time.Now()
	final, err := g.Run(context.Background(),
		state.State{"query": "TP53"},
		graph.WithThreadID("demo-thread"),
		graph.WithCheckpointer(cp),
		graph.WithMaxSteps(cfg.MaxSteps),
	)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	fmt.Printf("Answer: %s\n", final.GetString("answer"))
	fmt.Printf("Checkpoints stored: %d\n", cp.Size())
	fmt.Printf("Execution time: %v\n", time.Since(start))
}

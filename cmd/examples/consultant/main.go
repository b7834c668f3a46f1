// A two-expert consultation: a genetics consultant answers the question,
// then a reviewer consultant critiques the answer. Requires OPENAI_API_KEY.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avi3tal/agentflow/pkg/agents"
	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/state"
)

func main() {
	model, err := openai.New()
	if err != nil {
		log.Fatalf("openai client: %v", err)
	}

	genetics := agents.NewConsultant("genetics", model,
		agents.WithSystemPrompt("You are a genetics expert. Answer concisely."),
		agents.WithHistory(),
	)
	reviewer := agents.NewConsultant("reviewer", model,
		agents.WithSystemPrompt("Review the following answer for accuracy. Reply APPROVED or point out the problem."),
		agents.WithInputKey("answer"),
		agents.WithOutputKey("review"),
		agents.WithHistory(),
	)

	g := graph.New("consultation")
	if err := agents.Add(g, genetics); err != nil {
		log.Fatalf("add genetics: %v", err)
	}
	if err := agents.Add(g, reviewer); err != nil {
		log.Fatalf("add reviewer: %v", err)
	}
	if err := g.AddEdge("genetics", "reviewer"); err != nil {
		log.Fatalf("add edge: %v", err)
	}
	if err := g.AddEdge("reviewer", graph.END); err != nil {
		log.Fatalf("add edge: %v", err)
	}
	if err := g.SetEntryPoint("genetics"); err != nil {
		log.Fatalf("entry point: %v", err)
	}

	final, err := g.Run(context.Background(),
		state.State{"query": "What does the TP53 gene do?"})
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	fmt.Printf("Answer: %s\n\n", final.GetString("answer"))
	fmt.Printf("Review: %s\n", final.GetString("review"))
}

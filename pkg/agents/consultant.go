package agents

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"

	"github.com/avi3tal/agentflow/pkg/graph"
	"github.com/avi3tal/agentflow/pkg/state"
)

// Default state keys a consultant reads from and writes to. The key names
// are a contract between the graph's handlers and whoever renders the
// result, not part of the engine.
const (
	DefaultInputKey  = "query"
	DefaultOutputKey = "answer"
)

// Consultant is a domain-expert collaborator backed by an LLM. It reads a
// question from the state, consults the model under its system prompt, and
// writes the answer back. Prompt content and response schema are owned here,
// at the boundary; the engine sees only a node handler.
type Consultant struct {
	name         string
	model        llms.Model
	systemPrompt string
	inputKey     string
	outputKey    string
	keepHistory  bool
}

// ConsultantOption configures a Consultant.
type ConsultantOption func(*Consultant)

// WithSystemPrompt sets the expert's system prompt.
func WithSystemPrompt(prompt string) ConsultantOption {
	return func(c *Consultant) {
		c.systemPrompt = prompt
	}
}

// WithInputKey overrides the state key the question is read from.
func WithInputKey(key string) ConsultantOption {
	return func(c *Consultant) {
		c.inputKey = key
	}
}

// WithOutputKey overrides the state key the answer is written to.
func WithOutputKey(key string) ConsultantOption {
	return func(c *Consultant) {
		c.outputKey = key
	}
}

// WithHistory makes the consultant replay the state's conversation history
// to the model and append each exchange to it, so consultants sharing a run
// see each other's turns.
func WithHistory() ConsultantOption {
	return func(c *Consultant) {
		c.keepHistory = true
	}
}

// NewConsultant creates a consultant agent around a langchaingo model.
func NewConsultant(name string, model llms.Model, opts ...ConsultantOption) *Consultant {
	c := &Consultant{
		name:      name,
		model:     model,
		inputKey:  DefaultInputKey,
		outputKey: DefaultOutputKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Consultant) Name() string {
	return c.name
}

// Handler returns the node handler that consults the model.
func (c *Consultant) Handler() graph.Handler {
	return func(ctx context.Context, s state.State) (state.State, error) {
		question := s.GetString(c.inputKey)
		if question == "" {
			return nil, fmt.Errorf("consultant %q: state key %q is empty", c.name, c.inputKey)
		}

		var messages []llms.MessageContent
		if c.systemPrompt != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, c.systemPrompt))
		}
		if c.keepHistory {
			messages = append(messages, s.Messages()...)
		}
		ask := llms.TextParts(llms.ChatMessageTypeHuman, question)
		messages = append(messages, ask)

		resp, err := c.model.GenerateContent(ctx, messages)
		if err != nil {
			return nil, errors.Wrapf(err, "consultant %q", c.name)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("consultant %q: model returned no choices", c.name)
		}
		answer := resp.Choices[0].Content

		out := s.Clone()
		if c.keepHistory {
			out = out.AppendMessages(ask, llms.TextParts(llms.ChatMessageTypeAI, answer))
		}
		out[c.outputKey] = answer
		return out, nil
	}
}

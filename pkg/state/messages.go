package state

import (
	"github.com/tmc/langchaingo/llms"
)

// MessagesKey holds the accumulated conversation history for runs whose
// handlers talk to a model.
const MessagesKey = "messages"

// Messages returns the conversation history, or nil when absent.
func (s State) Messages() []llms.MessageContent {
	v, ok := s[MessagesKey].([]llms.MessageContent)
	if !ok {
		return nil
	}
	return v
}

// AppendMessages returns a copy of the state with the given messages added
// to the history. The existing history slice is not mutated.
func (s State) AppendMessages(msgs ...llms.MessageContent) State {
	c := s.Clone()
	history := s.Messages()
	combined := make([]llms.MessageContent, 0, len(history)+len(msgs))
	combined = append(combined, history...)
	combined = append(combined, msgs...)
	c[MessagesKey] = combined
	return c
}

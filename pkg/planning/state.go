package planning

// ToState converts the todo list into plain maps so a planning loop can
// ride inside graph state across checkpoints.
func (l *Loop) ToState() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]map[string]any, len(l.todos))
	for i, t := range l.todos {
		out[i] = map[string]any{
			"id":          t.ID,
			"description": t.Description,
			"status":      string(t.Status),
			"result":      t.Result,
			"error":       t.Error,
		}
	}
	return out
}

// FromState rebuilds a loop from the representation produced by ToState.
// Unrecognized entries are dropped.
func FromState(items []map[string]any, opts ...LoopOption) *Loop {
	l := NewLoop(opts...)
	for _, item := range items {
		id, _ := item["id"].(string)
		desc, _ := item["description"].(string)
		if id == "" {
			continue
		}
		status, _ := item["status"].(string)
		result, _ := item["result"].(map[string]any)
		cause, _ := item["error"].(string)
		l.todos = append(l.todos, &Todo{
			ID:          id,
			Description: desc,
			Status:      TodoStatus(status),
			Result:      result,
			Error:       cause,
		})
	}
	return l
}

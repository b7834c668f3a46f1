package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"

	nanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrInvalidTransition is returned when a todo transition is not
	// allowed: the todo is unknown or already terminal.
	ErrInvalidTransition = errors.New("invalid todo transition")

	// ErrTodosInProgress is returned by SetTodos while any todo is still
	// in progress.
	ErrTodosInProgress = errors.New("todos still in progress")
)

// TodoStatus is the lifecycle state of a todo.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TodoStatus) Terminal() bool {
	return s == TodoCompleted || s == TodoFailed
}

// Todo is one tracked unit of decomposed work. Todos are created through
// the loop, mutated only through its transition operations, and never
// deleted; failed todos remain for audit.
type Todo struct {
	ID          string
	Description string
	Status      TodoStatus
	Result      map[string]any
	Error       string
}

// DefaultMaxIterations caps a loop's fetch-execute cycles.
const DefaultMaxIterations = 10

// Loop tracks decomposed work for multi-step queries: todos move through
// pending -> in_progress -> {completed, failed}, and an iteration cap keeps
// the loop live-bounded. Safe for concurrent use.
type Loop struct {
	mu            sync.Mutex
	todos         []*Todo
	maxIterations int
	iteration     int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxIterations overrides the fetch-execute cycle cap.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		l.maxIterations = n
	}
}

// NewLoop creates an empty planning loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{maxIterations: DefaultMaxIterations}
	for _, o := range opts {
		o(l)
	}
	if l.maxIterations < 1 {
		l.maxIterations = 1
	}
	return l
}

// SetTodos replaces the todo list with fresh pending todos, one per
// description, and resets the iteration counter. It fails while any current
// todo is in progress.
func (l *Loop) SetTodos(descriptions []string) ([]Todo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.todos {
		if t.Status == TodoInProgress {
			return nil, fmt.Errorf("%w: %q", ErrTodosInProgress, t.ID)
		}
	}

	l.todos = l.todos[:0]
	l.iteration = 0
	created := make([]Todo, 0, len(descriptions))
	for _, desc := range descriptions {
		t := l.newTodo(desc)
		l.todos = append(l.todos, t)
		created = append(created, *t)
	}
	return created, nil
}

// AddTodo appends one pending todo and returns a copy of it.
func (l *Loop) AddTodo(description string) Todo {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.newTodo(description)
	l.todos = append(l.todos, t)
	return *t
}

func (l *Loop) newTodo(description string) *Todo {
	id, err := nanoid.New()
	if err != nil {
		// nanoid only fails when the OS entropy source does.
		panic(fmt.Sprintf("planning: generate todo id: %v", err))
	}
	return &Todo{
		ID:          "todo_" + id,
		Description: description,
		Status:      TodoPending,
	}
}

// NextPending returns a copy of the first pending todo in insertion order.
// Each fetch counts one iteration against the loop's cap. The second return
// is false when no todo is pending.
func (l *Loop) NextPending() (Todo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.todos {
		if t.Status == TodoPending {
			l.iteration++
			return *t, true
		}
	}
	return Todo{}, false
}

// CanContinue reports whether the loop should keep going: at least one todo
// is not terminal and the iteration cap has not been reached. Reaching the
// cap with todos still pending is a deliberate liveness stop, not a failure.
func (l *Loop) CanContinue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.iteration >= l.maxIterations {
		return false
	}
	for _, t := range l.todos {
		if !t.Status.Terminal() {
			return true
		}
	}
	return false
}

// MarkInProgress transitions a pending todo to in_progress.
func (l *Loop) MarkInProgress(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.transitionable(id)
	if err != nil {
		return err
	}
	t.Status = TodoInProgress
	return nil
}

// MarkComplete transitions a todo to completed with an attached result.
func (l *Loop) MarkComplete(id string, result map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.transitionable(id)
	if err != nil {
		return err
	}
	t.Status = TodoCompleted
	t.Result = result
	return nil
}

// MarkFailed transitions a todo to failed with the failure cause. The todo
// stays in the list for audit.
func (l *Loop) MarkFailed(id string, cause string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.transitionable(id)
	if err != nil {
		return err
	}
	t.Status = TodoFailed
	t.Error = cause
	return nil
}

func (l *Loop) transitionable(id string) (*Todo, error) {
	for _, t := range l.todos {
		if t.ID != id {
			continue
		}
		if t.Status.Terminal() {
			return nil, fmt.Errorf("%w: todo %q is already %s", ErrInvalidTransition, id, t.Status)
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: unknown todo %q", ErrInvalidTransition, id)
}

// Todos returns a copy of the todo list in insertion order.
func (l *Loop) Todos() []Todo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Todo, len(l.todos))
	for i, t := range l.todos {
		out[i] = *t
	}
	return out
}

// Get returns a copy of the todo with the given id.
func (l *Loop) Get(id string) (Todo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.todos {
		if t.ID == id {
			return *t, true
		}
	}
	return Todo{}, false
}

// AllTerminal reports whether every todo is completed or failed. An empty
// loop counts as done.
func (l *Loop) AllTerminal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.todos {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// AnyFailed reports whether any todo failed.
func (l *Loop) AnyFailed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.todos {
		if t.Status == TodoFailed {
			return true
		}
	}
	return false
}

// Iteration returns the number of fetch-execute cycles consumed so far.
func (l *Loop) Iteration() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.iteration
}

// Summary returns the todo count per status.
func (l *Loop) Summary() map[TodoStatus]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := map[TodoStatus]int{
		TodoPending:    0,
		TodoInProgress: 0,
		TodoCompleted:  0,
		TodoFailed:     0,
	}
	for _, t := range l.todos {
		summary[t.Status]++
	}
	return summary
}

// Len returns the number of todos.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.todos)
}

// ExecuteFunc performs one todo and returns its result.
type ExecuteFunc func(ctx context.Context, todo Todo) (map[string]any, error)

// Run drives the loop until no work remains, the iteration cap is reached,
// or the context is cancelled. Execution failures are recorded on the todo
// and do not stop the loop. Typically called from inside a node handler.
func (l *Loop) Run(ctx context.Context, execute ExecuteFunc) error {
	for l.CanContinue() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		todo, ok := l.NextPending()
		if !ok {
			return nil
		}
		if err := l.MarkInProgress(todo.ID); err != nil {
			return err
		}

		result, err := execute(ctx, todo)
		if err != nil {
			if markErr := l.MarkFailed(todo.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		if err := l.MarkComplete(todo.ID, result); err != nil {
			return err
		}
	}
	return nil
}

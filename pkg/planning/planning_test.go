package planning_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avi3tal/agentflow/pkg/planning"
)

func TestSetTodosCreatesPending(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()

	todos, err := loop.SetTodos([]string{"fetch BRCA", "fetch LUAD", "compare"})
	require.NoError(t, err)
	require.Len(t, todos, 3)
	for _, todo := range todos {
		require.Equal(t, planning.TodoPending, todo.Status)
		require.True(t, strings.HasPrefix(todo.ID, "todo_"))
	}
	require.Equal(t, 3, loop.Len())
}

func TestSetTodosRejectedWhileInProgress(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()

	todos, err := loop.SetTodos([]string{"one"})
	require.NoError(t, err)
	require.NoError(t, loop.MarkInProgress(todos[0].ID))

	_, err = loop.SetTodos([]string{"replacement"})
	require.ErrorIs(t, err, planning.ErrTodosInProgress)

	// once terminal, replacement is allowed again
	require.NoError(t, loop.MarkComplete(todos[0].ID, nil))
	_, err = loop.SetTodos([]string{"replacement"})
	require.NoError(t, err)
}

func TestNextPendingInsertionOrder(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	todos, err := loop.SetTodos([]string{"first", "second"})
	require.NoError(t, err)

	next, ok := loop.NextPending()
	require.True(t, ok)
	require.Equal(t, todos[0].ID, next.ID)

	require.NoError(t, loop.MarkInProgress(next.ID))
	require.NoError(t, loop.MarkComplete(next.ID, nil))

	next, ok = loop.NextPending()
	require.True(t, ok)
	require.Equal(t, todos[1].ID, next.ID)
}

func TestTransitions(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	todos, err := loop.SetTodos([]string{"work", "doomed"})
	require.NoError(t, err)

	require.NoError(t, loop.MarkInProgress(todos[0].ID))
	require.NoError(t, loop.MarkComplete(todos[0].ID, map[string]any{"rows": 3}))

	done, ok := loop.Get(todos[0].ID)
	require.True(t, ok)
	require.Equal(t, planning.TodoCompleted, done.Status)
	require.Equal(t, 3, done.Result["rows"])

	require.NoError(t, loop.MarkInProgress(todos[1].ID))
	require.NoError(t, loop.MarkFailed(todos[1].ID, "upstream timeout"))

	failed, ok := loop.Get(todos[1].ID)
	require.True(t, ok)
	require.Equal(t, planning.TodoFailed, failed.Status)
	require.Equal(t, "upstream timeout", failed.Error)

	// failed todos stay in the list for audit
	require.Equal(t, 2, loop.Len())
	require.True(t, loop.AnyFailed())
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	todos, err := loop.SetTodos([]string{"once"})
	require.NoError(t, err)

	require.NoError(t, loop.MarkComplete(todos[0].ID, nil))
	require.ErrorIs(t, loop.MarkComplete(todos[0].ID, nil), planning.ErrInvalidTransition)
	require.ErrorIs(t, loop.MarkInProgress(todos[0].ID), planning.ErrInvalidTransition)
	require.ErrorIs(t, loop.MarkFailed(todos[0].ID, "late"), planning.ErrInvalidTransition)

	require.ErrorIs(t, loop.MarkInProgress("todo_unknown"), planning.ErrInvalidTransition)
}

func TestCanContinueAllTerminal(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	todos, err := loop.SetTodos([]string{"a", "b"})
	require.NoError(t, err)

	require.True(t, loop.CanContinue())
	require.NoError(t, loop.MarkComplete(todos[0].ID, nil))
	require.True(t, loop.CanContinue())
	require.NoError(t, loop.MarkFailed(todos[1].ID, "nope"))
	require.False(t, loop.CanContinue())
	require.True(t, loop.AllTerminal())
}

func TestMaxIterationsLivenessCap(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop(planning.WithMaxIterations(2))
	_, err := loop.SetTodos([]string{"a", "b", "c", "d"})
	require.NoError(t, err)

	for loop.CanContinue() {
		todo, ok := loop.NextPending()
		require.True(t, ok)
		require.NoError(t, loop.MarkInProgress(todo.ID))
		require.NoError(t, loop.MarkComplete(todo.ID, nil))
	}

	// the cap stops the loop with todos still pending; that is not a failure
	require.Equal(t, 2, loop.Iteration())
	require.False(t, loop.CanContinue())
	require.Equal(t, 2, loop.Summary()[planning.TodoCompleted])
	require.Equal(t, 2, loop.Summary()[planning.TodoPending])
}

func TestRunDrivesAllTodos(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	_, err := loop.SetTodos([]string{"one", "two", "fail me"})
	require.NoError(t, err)

	var executed []string
	err = loop.Run(context.Background(), func(_ context.Context, todo planning.Todo) (map[string]any, error) {
		executed = append(executed, todo.Description)
		if todo.Description == "fail me" {
			return nil, errors.New("boom")
		}
		return map[string]any{"ok": true}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "fail me"}, executed)

	summary := loop.Summary()
	require.Equal(t, 2, summary[planning.TodoCompleted])
	require.Equal(t, 1, summary[planning.TodoFailed])
	require.True(t, loop.AllTerminal())
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	_, err := loop.SetTodos([]string{"a", "b"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = loop.Run(ctx, func(context.Context, planning.Todo) (map[string]any, error) {
		cancel()
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, loop.Summary()[planning.TodoCompleted])
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()
	loop := planning.NewLoop()
	todos, err := loop.SetTodos([]string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, loop.MarkComplete(todos[0].ID, map[string]any{"rows": 1}))

	restored := planning.FromState(loop.ToState())
	require.Equal(t, 2, restored.Len())

	a, ok := restored.Get(todos[0].ID)
	require.True(t, ok)
	require.Equal(t, planning.TodoCompleted, a.Status)
	require.Equal(t, 1, a.Result["rows"])

	b, ok := restored.Get(todos[1].ID)
	require.True(t, ok)
	require.Equal(t, planning.TodoPending, b.Status)
}

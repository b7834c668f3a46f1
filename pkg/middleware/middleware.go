package middleware

import (
	"context"

	"github.com/avi3tal/agentflow/pkg/state"
)

// Middleware observes and annotates state around node execution. Hooks may
// not suppress or redirect execution; side effects such as logging and
// metrics are expected. A middleware must not assume exclusive ownership of
// the state it forwards.
type Middleware interface {
	// PreInvoke runs before the node handler.
	PreInvoke(ctx context.Context, s state.State) state.State

	// PostInvoke runs after the node handler succeeds.
	PostInvoke(ctx context.Context, s state.State) state.State
}

// Stack holds an ordered list of middleware. Pre hooks are threaded through
// in registration order, post hooks in reverse, so the first-registered
// middleware wraps the whole invocation.
type Stack struct {
	middlewares []Middleware
}

// NewStack creates a stack with the given middleware, outermost first.
func NewStack(mws ...Middleware) *Stack {
	return &Stack{middlewares: mws}
}

// Use appends middleware to the stack.
func (s *Stack) Use(mws ...Middleware) {
	s.middlewares = append(s.middlewares, mws...)
}

// Len returns the number of registered middleware.
func (s *Stack) Len() int {
	return len(s.middlewares)
}

// ApplyPre threads st through each middleware's PreInvoke in list order.
func (s *Stack) ApplyPre(ctx context.Context, st state.State) state.State {
	for _, mw := range s.middlewares {
		st = mw.PreInvoke(ctx, st)
	}
	return st
}

// ApplyPost threads st through each middleware's PostInvoke in reverse list
// order.
func (s *Stack) ApplyPost(ctx context.Context, st state.State) state.State {
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		st = s.middlewares[i].PostInvoke(ctx, st)
	}
	return st
}

// Func adapts a pair of functions into a Middleware. Either hook may be nil.
type Func struct {
	Pre  func(ctx context.Context, s state.State) state.State
	Post func(ctx context.Context, s state.State) state.State
}

func (f Func) PreInvoke(ctx context.Context, s state.State) state.State {
	if f.Pre == nil {
		return s
	}
	return f.Pre(ctx, s)
}

func (f Func) PostInvoke(ctx context.Context, s state.State) state.State {
	if f.Post == nil {
		return s
	}
	return f.Post(ctx, s)
}

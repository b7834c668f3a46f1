package middleware

import (
	"context"
	"log/slog"

	"github.com/avi3tal/agentflow/pkg/state"
)

// Logging traces node invocations through slog without touching the state.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates a logging middleware. A nil logger falls back to
// slog.Default().
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) PreInvoke(_ context.Context, s state.State) state.State {
	l.logger.Debug("node starting",
		"node", s.GetString(state.CurrentNodeKey),
		"thread_id", s.ThreadID(),
		"keys", len(s),
	)
	return s
}

func (l *Logging) PostInvoke(_ context.Context, s state.State) state.State {
	l.logger.Debug("node finished",
		"node", s.GetString(state.CurrentNodeKey),
		"thread_id", s.ThreadID(),
		"keys", len(s),
	)
	return s
}

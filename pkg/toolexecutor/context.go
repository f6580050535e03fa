package toolexecutor

import (
	"context"

	"github.com/rs/zerolog"
)

type execContextKey struct{}

// WithExecContext makes execCtx visible to the handler of the call.
func WithExecContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, execContextKey{}, execCtx)
}

// ExecContextFrom returns the ExecutionContext of the running tool call, or
// nil outside of Execute.
func ExecContextFrom(ctx context.Context) *ExecutionContext {
	execCtx, _ := ctx.Value(execContextKey{}).(*ExecutionContext)
	return execCtx
}

// withCaller tags an event with the session and agent of the running call
func withCaller(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	execCtx := ExecContextFrom(ctx)
	if execCtx == nil {
		return event
	}
	if execCtx.SessionKey != "" {
		event = event.Str("session_key", execCtx.SessionKey)
	}
	if execCtx.AgentID != "" {
		event = event.Str("agent_id", execCtx.AgentID)
	}
	return event
}

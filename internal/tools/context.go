package tools

import "context"

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID adds the run ID to the context so tools can place
// artifacts in the run's working directory.
func WithRunID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run ID from the context.
func RunIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(runIDKey).(int64)
	return id, ok
}

package common

import "context"

// CycleLogger provides structured logging for spawn cycles and enrichment
// requests. Implementations must be safe for concurrent use.
type CycleLogger interface {
	Log(level, message string, metadata map[string]interface{})
}

type contextKey int

const loggerKey contextKey = iota

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger CycleLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger from context, or returns a no-op
// logger if none was attached.
func LoggerFromContext(ctx context.Context) CycleLogger {
	if logger, ok := ctx.Value(loggerKey).(CycleLogger); ok {
		return logger
	}
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(string, string, map[string]interface{}) {}

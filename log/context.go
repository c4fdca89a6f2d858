package log

import "context"

// loggerKey is the key used to store a Logger in a context.Context.
type loggerKey struct{}

// ToContext returns a copy of ctx carrying logger.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the Logger stored in ctx, or a Noop logger if none was set.
func FromContext(ctx context.Context) Logger {
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok || logger == nil {
		return Noop{}
	}
	return logger
}

// Noop is a Logger that discards everything. It is the default used by
// FromContext when no logger has been injected, so call sites never need a
// nil check.
type Noop struct{}

func (Noop) Debug(msg string, keysAndValues ...any) {}
func (Noop) Info(msg string, keysAndValues ...any)  {}
func (Noop) Warn(msg string, keysAndValues ...any)  {}
func (Noop) Error(msg string, keysAndValues ...any) {}

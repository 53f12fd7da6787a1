package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the command currently being dispatched.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	CommandID string    // dispatcher-assigned command id
	Command   string    // command name from the pipeline script
	Kind      string    // command kind: filter_load, filter_run, ...
	Filter    uint32    // LS address of the filter control block, 0 if none
	StartTime time.Time // first invocation, for duration calculation
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a context for the named command.
func NewLogContext(id, name, kind string) *LogContext {
	return &LogContext{
		CommandID: id,
		Command:   name,
		Kind:      kind,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithFilter returns a copy bound to the filter at addr.
func (lc *LogContext) WithFilter(addr uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Filter = addr
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

package logger

import "context"

type traceKey struct{}

// TraceContext captures identifiers correlating all entries of one
// installer session.
type TraceContext struct {
	SessionID string
	Product   string
	Operation string
}

// ContextWithTrace returns a derived context carrying the provided trace metadata.
func ContextWithTrace(ctx context.Context, trace TraceContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey{}, trace)
}

// TraceFromContext extracts a TraceContext from ctx.
func TraceFromContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}
	if trace, ok := ctx.Value(traceKey{}).(TraceContext); ok {
		return trace
	}
	return TraceContext{}
}

func traceFieldsFromContext(ctx context.Context) []Field {
	return TraceFromContext(ctx).fields()
}

func (t TraceContext) fields() []Field {
	var fields []Field
	if t.SessionID != "" {
		fields = append(fields, String("session_id", t.SessionID))
	}
	if t.Product != "" {
		fields = append(fields, String("product", t.Product))
	}
	if t.Operation != "" {
		fields = append(fields, String("operation", t.Operation))
	}
	return fields
}

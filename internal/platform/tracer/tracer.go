// Package tracer abstracts span creation so gateway services do not depend
// on the OpenTelemetry API directly and tests can run without an SDK.
package tracer

import "context"

// Attribute is a key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

// String builds a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool builds a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int builds an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Tracer starts spans around gateway operations.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is the minimal span surface the gateway needs.
type Span interface {
	// End completes the span, recording any error.
	End(err error)
	SetAttributes(attrs ...Attribute)
}

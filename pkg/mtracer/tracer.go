// Package mtracer threads an OpenTelemetry tracer through context.Context,
// falling back to the global "midaz-ledger-core" tracer when none was
// attached (mirrors the teacher's common/context.go NewTracerFromContext).
package mtracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type tracerKey struct{}

// ContextWithTracer attaches a tracer to ctx.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tracer)
}

// FromContext returns the tracer attached to ctx, or the global default.
//
//nolint:ireturn
func FromContext(ctx context.Context) trace.Tracer {
	if tracer, ok := ctx.Value(tracerKey{}).(trace.Tracer); ok && tracer != nil {
		return tracer
	}
	return otel.Tracer("midaz-ledger-core")
}

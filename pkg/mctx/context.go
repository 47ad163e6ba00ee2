// Package mctx carries the per-request logger and tracer through
// context.Context, so every stage's handler picks up the trace id and
// structured fields of the message it is currently processing without
// threading them through every function signature.
package mctx

import (
	"context"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const key = contextKey("nlds_context")

type values struct {
	Tracer trace.Tracer
	Logger mlog.Logger
}

// LoggerFromContext extracts the Logger attached to ctx, or a no-op logger
// if none was attached.
//
//nolint:ireturn
func LoggerFromContext(ctx context.Context) mlog.Logger {
	if v, ok := ctx.Value(key).(*values); ok && v.Logger != nil {
		return v.Logger
	}

	return &mlog.NoneLogger{}
}

// WithLogger returns a context carrying logger, preserving any tracer
// already attached.
func WithLogger(ctx context.Context, logger mlog.Logger) context.Context {
	v, _ := ctx.Value(key).(*values)
	if v == nil {
		v = &values{}
	}

	next := *v
	next.Logger = logger

	return context.WithValue(ctx, key, &next)
}

// TracerFromContext extracts the Tracer attached to ctx, or the global
// default tracer if none was attached.
//
//nolint:ireturn
func TracerFromContext(ctx context.Context) trace.Tracer {
	if v, ok := ctx.Value(key).(*values); ok && v.Tracer != nil {
		return v.Tracer
	}

	return otel.Tracer("nlds")
}

// WithTracer returns a context carrying tracer, preserving any logger
// already attached.
func WithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	v, _ := ctx.Value(key).(*values)
	if v == nil {
		v = &values{}
	}

	next := *v
	next.Tracer = tracer

	return context.WithValue(ctx, key, &next)
}

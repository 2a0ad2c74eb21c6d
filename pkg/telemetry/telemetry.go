package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const Name = "github.com/stateforward/go-stepper"

// Attribute keys shared by step and agent spans.
const (
	RunKey      = attribute.Key("stepper.run")
	StepKey     = attribute.Key("stepper.step")
	ElementKey  = attribute.Key("stepper.element")
	ElementsKey = attribute.Key("stepper.elements")
	DurationKey = attribute.Key("stepper.duration_ms")
	KeepKey     = attribute.Key("stepper.keep_config")
)

// Noop returns a tracer that records nothing. It is the default.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer(Name)
}

// Global returns a tracer from the globally registered provider.
func Global() trace.Tracer {
	return otel.Tracer(Name)
}

func Milliseconds(key attribute.Key, d time.Duration) attribute.KeyValue {
	return key.Int64(d.Milliseconds())
}

// Start opens a span, falling back to the no-op tracer when tracer is nil.
func Start(ctx context.Context, tracer trace.Tracer, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Noop()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attributes...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

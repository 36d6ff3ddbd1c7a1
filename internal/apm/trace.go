package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)
}

type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	// NoticeError records err and marks the span failed. Nil is ignored.
	NoticeError(err error)
	End()
}

type openTracer struct {
	name string
}

// NewTracer resolves the global provider on every Start, so tracers made
// before NewTraceProvider still export.
func NewTracer(name string) Tracer {
	return &openTracer{name: name}
}

func (t *openTracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := otel.Tracer(t.name).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &traceSpan{span: span}
}

type traceSpan struct {
	span trace.Span
}

func (s *traceSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s *traceSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *traceSpan) End() {
	s.span.End()
}

package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span is the subset of trace.Span the business packages use.
type Span interface {
	SetAttributes(kv ...attribute.KeyValue)
	AddEvent(name string, kv ...attribute.KeyValue)
	NoticeError(err error)
	End()
	TraceID() string
}

type Tracer interface {
	Start(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, Span)
}

type otelTracer struct {
	tracer trace.Tracer
}

// NewTracer returns a tracer bound to the global provider at call time.
func NewTracer(name string) Tracer {
	return &otelTracer{tracer: otel.Tracer(name)}
}

func (t *otelTracer) Start(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, Span) {
	ctx, s := t.tracer.Start(ctx, name, trace.WithAttributes(kv...))
	return ctx, &span{s}
}

type span struct {
	s trace.Span
}

func (s *span) SetAttributes(kv ...attribute.KeyValue) { s.s.SetAttributes(kv...) }

func (s *span) AddEvent(name string, kv ...attribute.KeyValue) {
	s.s.AddEvent(name, trace.WithAttributes(kv...))
}

// NoticeError records err and marks the span failed. A nil err is ignored.
func (s *span) NoticeError(err error) {
	if err == nil {
		return
	}
	s.s.RecordError(err)
	s.s.SetStatus(codes.Error, err.Error())
}

func (s *span) End() { s.s.End() }

func (s *span) TraceID() string {
	sc := s.s.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Package apm wires OpenTelemetry tracing for the process.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fd1az/arbguard/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	ConsoleProvider  Provider = "console"
	NoopProvider     Provider = "none"
)

// ParseProvider maps a config string to a Provider. Unknown values yield NoopProvider.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ZipkinProvider, OTLPGRPCProvider, OTLPHTTPProvider, ConsoleProvider:
		return p
	default:
		return NoopProvider
	}
}

type TraceProvider interface {
	Stop() error
}

type Options struct {
	Provider    Provider
	ServiceName string
	Endpoint    string
	Headers     map[string]string
	SampleRatio float64
}

type Option func(*Options)

func WithProvider(p Provider) Option {
	return func(o *Options) { o.Provider = p }
}

func WithServiceName(name string) Option {
	return func(o *Options) { o.ServiceName = name }
}

func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

// WithHeaders parses "k=v,k2=v2" exporter headers.
func WithHeaders(raw string) Option {
	return func(o *Options) {
		for _, pair := range strings.Split(raw, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || k == "" {
				continue
			}
			if o.Headers == nil {
				o.Headers = make(map[string]string)
			}
			o.Headers[k] = v
		}
	}
}

func WithSampleRatio(r float64) Option {
	return func(o *Options) { o.SampleRatio = r }
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type noopProvider struct{}

func (noopProvider) Stop() error { return nil }

// NewTraceProvider installs a global tracer provider and the W3C propagators.
// A NoopProvider, or an exporter that fails to build, leaves the global
// provider untouched and returns a provider whose Stop is a no-op.
func NewTraceProvider(log logger.LoggerInterface, opts ...Option) TraceProvider {
	o := &Options{Provider: NoopProvider, ServiceName: "arbguard", SampleRatio: 1}
	for _, opt := range opts {
		opt(o)
	}

	ctx := context.Background()
	if o.Provider == NoopProvider {
		return noopProvider{}
	}

	exp, err := newExporter(ctx, o)
	if err != nil {
		log.Warn(ctx, "tracing disabled", "provider", string(o.Provider), "error", err)
		return noopProvider{}
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(o.ServiceName),
			attribute.String("otel.provider", string(o.Provider)),
		))

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
	if o.SampleRatio >= 1 {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled", "provider", string(o.Provider), "endpoint", o.Endpoint)
	return &traceProvider{tp: tp}
}

func newExporter(ctx context.Context, o *Options) (sdktrace.SpanExporter, error) {
	switch o.Provider {
	case ZipkinProvider:
		if o.Endpoint == "" {
			return nil, fmt.Errorf("zipkin endpoint required")
		}
		return zipkin.New(o.Endpoint)
	case OTLPGRPCProvider:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(o.Headers)}
		if o.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(o.Endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case OTLPHTTPProvider:
		opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(o.Headers)}
		if o.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(o.Endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unknown trace provider %q", o.Provider)
	}
}

func (p *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
	defer cancel()
	return p.tp.Shutdown(ctx)
}

package interceptors

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// healthCheckMethod is polled by the mesh every few seconds and is not worth a span.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// TracingOptions customises the tracing interceptor behaviour.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	// TraceHealthChecks also records spans for grpc.health.v1.Health/Check.
	TraceHealthChecks bool
}

// TracingInterceptor wraps the otelgrpc server interceptors.
type TracingInterceptor struct {
	unary       grpc.UnaryServerInterceptor
	stream      grpc.StreamServerInterceptor
	skipHealthz bool
}

// NewTracingInterceptor builds unary and stream interceptors with the supplied options.
func NewTracingInterceptor(opts TracingOptions) *TracingInterceptor {
	var options []otelgrpc.Option
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}

	return &TracingInterceptor{
		unary:       otelgrpc.UnaryServerInterceptor(options...),
		stream:      otelgrpc.StreamServerInterceptor(options...),
		skipHealthz: !opts.TraceHealthChecks,
	}
}

// Unary returns the unary server interceptor.
func (ti *TracingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if ti == nil || ti.unary == nil || (ti.skipHealthz && info.FullMethod == healthCheckMethod) {
			return handler(ctx, req)
		}
		return ti.unary(ctx, req, info, handler)
	}
}

// Stream returns the stream server interceptor.
func (ti *TracingInterceptor) Stream() grpc.StreamServerInterceptor {
	if ti == nil || ti.stream == nil {
		return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			return handler(srv, ss)
		}
	}
	return ti.stream
}

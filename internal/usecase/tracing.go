package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/GreenityClub/Unitree-sub000/internal/usecase"

func startSpan(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	var opts []trace.SpanStartOption
	if userID != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("unitree.user_id", userID)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

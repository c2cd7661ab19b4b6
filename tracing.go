package reqflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "github.com/ambiyansyah-risyal/reqflow"
	spanName   = "reqflow.request"
)

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(tracerName)
}

func (c *Client) startSpan(ctx context.Context, cl *call) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.full", cl.req.URL),
			attribute.String("reqflow.fingerprint", cl.key),
			attribute.Bool("reqflow.cache", cl.req.Cache),
			attribute.Bool("reqflow.dedup", cl.dedup),
		),
	)
}

func endSpan(span trace.Span, cl *call, outcome string, statusCode int, err error) {
	span.SetAttributes(
		attribute.String("reqflow.outcome", outcome),
		attribute.Bool("reqflow.superseded_previous", cl.superseded),
	)
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

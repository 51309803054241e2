package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans created by this module.
const InstrumentationName = "github.com/GoCodeAlone/mongo-mcp"

// Attribute keys set on operation spans.
const (
	AttrOperation  = attribute.Key("mongo_mcp.operation")
	AttrOpID       = attribute.Key("mongo_mcp.op_id")
	AttrCollection = attribute.Key("db.collection.name")
	AttrErrorKind  = attribute.Key("mongo_mcp.error_kind")
)

// OperationTracer starts one span per gateway operation.
type OperationTracer struct {
	tracer trace.Tracer
}

// NewOperationTracer creates an OperationTracer. If tracer is nil, the
// global tracer provider is consulted on every span, so a provider installed
// later still takes effect.
func NewOperationTracer(tracer trace.Tracer) *OperationTracer {
	return &OperationTracer{tracer: tracer}
}

func (o *OperationTracer) get() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.GetTracerProvider().Tracer(InstrumentationName)
	}
	return o.tracer
}

// Start begins a span named "mongo.<op>". collection may be empty.
func (o *OperationTracer) Start(ctx context.Context, op, opID, collection string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrOperation.String(op),
		AttrOpID.String(opID),
		attribute.String("db.system", "mongodb"),
	}
	if collection != "" {
		attrs = append(attrs, AttrCollection.String(collection))
	}
	return o.get().Start(ctx, "mongo."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End finishes span, marking it failed with kind when err is non-nil.
func (o *OperationTracer) End(span trace.Span, kind string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(AttrErrorKind.String(kind))
		span.SetStatus(codes.Error, kind)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

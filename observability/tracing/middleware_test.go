package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func TestSpanMiddleware_CreatesServerSpan(t *testing.T) {
	exporter := setupTestProvider(t)

	handler := SpanMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "POST /mcp" {
		t.Errorf("expected span name 'POST /mcp', got %q", spans[0].Name)
	}
	if spans[0].SpanKind != trace.SpanKindServer {
		t.Errorf("expected server span, got %v", spans[0].SpanKind)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
}

func TestSpanMiddleware_MarksServerErrors(t *testing.T) {
	exporter := setupTestProvider(t)

	handler := SpanMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sse", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status on 500 span, got %v", spans[0].Status.Code)
	}
}

func TestSpanMiddleware_ContinuesRemoteTrace(t *testing.T) {
	exporter := setupTestProvider(t)

	var child trace.SpanContext
	handler := SpanMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, span := NewOperationTracer(nil).Start(r.Context(), "read", "id", "items")
		child = span.SpanContext()
		span.End()
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !child.IsValid() {
		t.Fatal("expected a valid child span inside the handler")
	}
	if got := child.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected the client's trace id, got %s", got)
	}
	if len(exporter.GetSpans()) != 2 {
		t.Errorf("expected server and operation spans, got %d", len(exporter.GetSpans()))
	}
}

func TestSpanMiddleware_KeepsFlusher(t *testing.T) {
	setupTestProvider(t)

	var flushable bool
	handler := SpanMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sse", nil))

	if !flushable {
		t.Error("SSE streams need the wrapped writer to implement http.Flusher")
	}
}

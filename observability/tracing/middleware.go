package tracing

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SpanMiddleware wraps an MCP network transport so each HTTP request gets a
// server span named "<method> <path>", continuing any trace context sent by
// the client. Operation spans started by tool handlers become its children.
func SpanMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "mcp",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

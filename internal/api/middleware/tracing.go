package middleware

import (
	"fmt"
	"net/http"

	"github.com/jtchitty/legatoDataHub/internal/tracing"
)

// TraceIDHeader is the response header carrying the active trace's ID.
const TraceIDHeader = "X-Trace-ID"

// Tracing wraps a handler in a span named "<method> <path>" and stamps the
// response with the resulting trace ID. Built directly on the otel trace
// API to keep the dependency surface to what internal/tracing already
// wires up.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()
		if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
			w.Header().Set(TraceIDHeader, traceID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

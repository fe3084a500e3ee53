// Package middleware provides HTTP middleware for the Data Hub's REST/
// WebSocket transport: request correlation, structured request logging and
// Prometheus RED metrics.
package middleware

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jtchitty/legatoDataHub/internal/logging"
	"github.com/jtchitty/legatoDataHub/internal/metrics"
)

// ResponseRequestIDHeader is the response header carrying the correlation ID.
const ResponseRequestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID (reusing one supplied by
// the caller), stashes it in the request context under the key package
// logging also uses for session IDs, and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(ResponseRequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx := logging.WithSessionID(r.Context(), reqID)
		w.Header().Set(ResponseRequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter captures the status code written so StructuredLog can
// report it after the handler runs.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the wrapped ResponseWriter.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("middleware: ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

// StructuredLog logs each request as one structured line on log and records
// RED metrics (rate, errors, duration) against the route template rather
// than the raw path, so dynamic resource paths don't blow up metric
// cardinality.
func StructuredLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := logging.FromContext(r.Context())
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			pathLabel := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
					pathLabel = tpl
				}
			}
			level := slog.LevelInfo
			if rw.status >= 500 {
				level = slog.LevelError
			} else if rw.status >= 400 {
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "http request", "request_id", reqID, "method", r.Method,
				"path", pathLabel, "status", rw.status, "duration_ms", duration.Milliseconds())

			statusStr := strconv.Itoa(rw.status)
			metrics.HTTPRequestTotal.WithLabelValues(r.Method, pathLabel, statusStr).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, pathLabel).Observe(duration.Seconds())
		})
	}
}

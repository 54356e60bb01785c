package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// ErrPanicRecovered indicates an HTTP handler panicked and was recovered.
var ErrPanicRecovered = errors.New("panic recovered in http handler")

// Middleware wraps an http.Handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// statusRecorder captures the status code a handler writes so the logging
// middleware can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request with its method, path, status, and
// duration.
//
// Log level is Info for successful requests and Warn for requests that end
// in a server error.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, req)
			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", duration),
			}

			if rec.status >= http.StatusInternalServerError {
				logger.LogAttrs(req.Context(), slog.LevelWarn, "request completed with error", attrs...)
			} else {
				logger.LogAttrs(req.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}

// RecoveryMiddleware recovers from panics in HTTP handlers. On panic, it
// logs the panic value and stack trace at Error level and returns a 500 to
// the client.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if r := recover(); r != nil {
					// Capture a stack trace for debugging.
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)

					logger.LogAttrs(req.Context(), slog.LevelError, "panic recovered in http handler",
						slog.String("path", req.URL.Path),
						slog.Any("panic", r),
						slog.String("stack", string(buf[:n])),
					)

					http.Error(w, ErrPanicRecovered.Error(), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, req)
		})
	}
}

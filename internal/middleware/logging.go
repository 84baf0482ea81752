package middleware

import (
	"asset-management-api/pkg/errors"
	"log"
	"net/http"
	"runtime/debug"
	"time"
)

// LoggingMiddleware provides request logging with security context
type LoggingMiddleware struct {
	logger *log.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger *log.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingMiddleware{
		logger: logger,
	}
}

// LogRequests logs incoming requests with the caller and client IP
func (lm *LoggingMiddleware) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ClientIPFromContext(r.Context())
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		lm.logger.Printf("[%s] %s %s %d %v - IP: %s, Request-ID: %s",
			r.Method,
			r.RequestURI,
			r.Proto,
			wrapped.statusCode,
			time.Since(start),
			clientIP,
			r.Header.Get("X-Request-ID"),
		)

		switch wrapped.statusCode {
		case http.StatusTooManyRequests:
			lm.logger.Printf("SECURITY: Rate limit exceeded for IP: %s", clientIP)
		case http.StatusUnauthorized, http.StatusForbidden:
			lm.logger.Printf("SECURITY: Access denied (%d) for IP: %s on %s", wrapped.statusCode, clientIP, r.URL.Path)
		}
	})
}

// Recover turns a handler panic into a 500 response
func (lm *LoggingMiddleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				lm.logger.Printf("PANIC recovered on %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeError(w, errors.NewAppError(errors.ErrorCodeInternal, "Internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"github.com/vitrina/vitrina/internal/geoip"
	"github.com/vitrina/vitrina/internal/httputil"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streamed pages streaming through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(geo *geoip.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			clientIP := httputil.ClientIP(r)
			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", clientIP,
			}
			if ua := r.UserAgent(); ua != "" {
				parsed := useragent.New(ua)
				browser, _ := parsed.Browser()
				attrs = append(attrs, "browser", browser, "os", parsed.OS(), "bot", parsed.Bot())
			}
			if loc, err := geo.Lookup(clientIP); err != nil {
				slog.Debug("geoip lookup failed", "error", err)
			} else if loc.Country != "" {
				attrs = append(attrs, "country", loc.Country)
			}

			slog.Info("http request", attrs...)
		})
	}
}

package webapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/fpang/kimixchange/internal/metrics"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// WithLogging logs every API request with its status and duration.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sr.statusCode).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

// WithCORS allows browser calls from localhost dev servers only.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithOriginVerify rejects requests lacking the x-origin-verify header that
// CloudFront injects, so the API Gateway URL cannot be called directly.
// An empty secret disables the check.
func WithOriginVerify(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("x-origin-verify") != secret {
				log.Warn().Str("path", r.URL.Path).Msg("Blocked request: missing or invalid x-origin-verify header")
				httpError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithMetrics emits RequestLatencyMs and RequestCount per route pattern.
func WithMetrics(sink *metrics.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			// The mux records the matched pattern on the request, which keeps
			// the dimension low-cardinality for /api/history/{id} routes.
			endpoint := r.Pattern
			if endpoint == "" {
				endpoint = "unmatched"
			}
			sink.New().
				Dimension("Endpoint", endpoint).
				Duration("RequestLatencyMs", time.Since(start)).
				Count("RequestCount").
				Property("method", r.Method).
				Property("statusCode", sr.statusCode).
				Property("path", r.URL.Path).
				Flush()
		})
	}
}

// WithGzip compresses responses for clients that accept it. Already
// compressed content such as JPEG thumbnails passes through.
func WithGzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// Chain applies middleware so the first listed is outermost.
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

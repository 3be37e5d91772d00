package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/brandpilot/brandpilot/infrastructure/http/response"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// RequestRecorder receives one observation per request
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Observe logs and records every request by its route template, and turns
// panics into 500s.
func Observe(log logger.Logger, recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if p := recover(); p != nil {
					log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", p), map[string]interface{}{
						"path": r.URL.Path,
					})
					response.Error(rec, http.StatusInternalServerError, "Internal server error")
				}

				route := r.URL.Path
				if current := mux.CurrentRoute(r); current != nil {
					if tpl, err := current.GetPathTemplate(); err == nil {
						route = tpl
					}
				}
				duration := time.Since(start)
				if recorder != nil {
					recorder.RecordHTTPRequest(r.Method, route, rec.status, duration)
				}
				log.Info(r.Context(), "HTTP request", map[string]interface{}{
					"method":      r.Method,
					"route":       route,
					"status":      rec.status,
					"duration_ms": duration.Milliseconds(),
				})
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

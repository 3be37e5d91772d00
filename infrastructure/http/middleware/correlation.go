package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

const CorrelationIDHeader = "X-Correlation-ID"

// Correlation ensures every request carries a correlation id on its context
// and response. header overrides the default header name.
func Correlation(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = CorrelationIDHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(header)
			if cid == "" {
				cid = uuid.NewString()
			}
			w.Header().Set(header, cid)
			next.ServeHTTP(w, r.WithContext(logger.WithCorrelationID(r.Context(), cid)))
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/Nzyazin/cashledger/internal/core/logger"
)

// RequestLogger writes one line per request once the response is done.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r)

			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.IntField("status", rec.status),
				logger.AnyField("duration", time.Since(start)),
				logger.StringField("remote_addr", r.RemoteAddr),
			)
		})
	}
}

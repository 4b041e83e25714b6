// Package middlewares holds the HTTP middleware chain: request identity,
// structured request logging, panic recovery and metrics.
package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/keystash/keystash/internal/metrics"
	"github.com/keystash/keystash/internal/observability/logger"
)

// Logging injects a request-scoped logger into the context and writes one
// access log line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		log := logger.L().With(
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		ctx := logger.ToContext(r.Context(), log)
		next.ServeHTTP(ww, r.WithContext(ctx))

		elapsed := time.Since(start)
		log.Info("request",
			logger.Status(ww.Status()),
			logger.Duration(elapsed),
		)
		metrics.HTTPRequests.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
	})
}

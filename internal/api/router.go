// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	xlog "github.com/kinetiq/formcoach/internal/log"
)

// NewRouter assembles the full route tree with the standard middleware
// stack. The /analyze rate limit is read once at construction; a config
// reload that changes it requires a restart.
func NewRouter(h *Handler) http.Handler {
	cfg := h.cfg.Get()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ping", h.Ping)

	r.Post("/register/new/session", h.Register)
	r.Post("/unregister/session", h.Unregister)
	r.Post("/start/session", h.Start)
	r.Post("/pause/session", h.Pause)
	r.Post("/resume/session", h.Resume)
	r.Post("/end/session", h.End)
	r.Post("/session/status", h.Status)
	r.Post("/session/summary", h.Summary)

	r.Group(func(r chi.Router) {
		if limit := cfg.Server.AnalyzeRateLimit; limit > 0 {
			r.Use(httprate.Limit(limit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
		}
		r.Post("/analyze", h.Analyze)
	})

	r.Get("/internal/telemetry", h.Telemetry)
	r.Get("/refresh/configurations", h.Refresh)
	r.Post("/terminate/server", h.Terminate)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "formcoach.http")
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	logger := xlog.WithComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

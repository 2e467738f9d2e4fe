package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Benwil1/latest-copy-sub000/config"
	"github.com/Benwil1/latest-copy-sub000/graph"
	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/metrics"
	"github.com/Benwil1/latest-copy-sub000/notify"
	"github.com/Benwil1/latest-copy-sub000/profiles"
)

type routerDeps struct {
	Engine     *matching.Engine
	Hub        *notify.Hub
	Profiles   profiles.Source
	LoaderWait time.Duration
	JWTSecret  []byte
	Server     config.ServerConfig
	// Ping reports storage health for /health.
	Ping func(ctx context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(withCORS(d.Server.CORSOrigins))
	r.Use(httpMetrics)

	r.Get("/health", healthHandler(d.Ping))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.Server.RateLimit > 0 {
			r.Use(httprate.LimitByIP(d.Server.RateLimit, d.Server.RateWindow))
		}
		r.Use(authenticate(d.JWTSecret))
		r.Use(profiles.Middleware(d.Profiles, d.LoaderWait))

		r.Post("/actions", recordActionHandler(d.Engine))
		r.Get("/matches", matchesHandler(d.Engine))
		r.Get("/matches/stats", statsHandler(d.Engine))
		r.Delete("/matches/{userID}", unmatchHandler(d.Engine))
		r.Get("/likes/received", likesReceivedHandler(d.Engine))
		r.Get("/compatibility/{userA}/{userB}", compatibilityHandler(d.Engine))
		r.Get("/ws/matches", wsMatchesHandler(d.Hub))
		r.Handle("/graphql", graph.NewHandler(graph.NewResolver(d.Engine, d.Hub, userFromContext), nil))
	})

	return r
}

// requestLogger attaches a request-scoped logger carrying the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimiddleware.GetReqID(r.Context())
		w.Header().Set("X-Request-ID", reqID)
		ctx := logging.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Health check endpoint for Docker
func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

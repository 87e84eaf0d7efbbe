package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/angeloszaimis/engagement-relay/internal/diagnostic"
	"github.com/angeloszaimis/engagement-relay/internal/healthcheck"
	"github.com/angeloszaimis/engagement-relay/internal/httpserver"
	"github.com/angeloszaimis/engagement-relay/internal/relay"
)

type routes struct {
	relay      *relay.Relay
	diagnostic *diagnostic.Handler
	readiness  http.Handler
	metrics    http.Handler
}

func newRouter(log *slog.Logger, rt routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpserver.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthcheck.Liveness)
	r.Method(http.MethodGet, "/readyz", rt.readiness)
	r.Method(http.MethodGet, "/metrics", rt.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/stats/refresh", rt.relay.RefreshStats)

		r.Get("/test-simple", rt.diagnostic.Get)
		r.Post("/test-simple", rt.diagnostic.Post)
	})

	return r
}

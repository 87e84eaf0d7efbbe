// Mockbackend is a stand-in for the engagement stats service, used to
// run the relay locally. It serves POST /api/stats/refresh and GET /health.
//
// Usage:
//
//	go run ./scripts/mockbackend -port 8081
//	NEXT_PUBLIC_BACKEND_URL=http://localhost:8081 go run ./cmd
//
// -fail-rate makes a fraction of refreshes answer 500 so the relay's
// failure envelope can be observed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/angeloszaimis/engagement-relay/internal/httpserver"
	"github.com/angeloszaimis/engagement-relay/pkg/logger"
)

type refreshResponse struct {
	Success     bool      `json:"success"`
	Refreshed   int       `json:"refreshed"`
	Likes       int       `json:"likes"`
	Replies     int       `json:"replies"`
	Reposts     int       `json:"reposts"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "fraction of refreshes answered with 500 (0..1)")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(*level, false, "dev").With(slog.String("component", "mockbackend"))

	var refreshes atomic.Int64

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpserver.RequestLogger(log))

	r.Post("/api/stats/refresh", func(w http.ResponseWriter, r *http.Request) {
		if *failRate > 0 && rand.Float64() < *failRate {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"error":"stats provider unavailable"}`))
			return
		}

		resp := refreshResponse{
			Success:     true,
			Refreshed:   int(refreshes.Add(1)),
			Likes:       rand.IntN(500),
			Replies:     rand.IntN(100),
			Reposts:     rand.IntN(50),
			RefreshedAt: time.Now().UTC(),
		}

		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})

	// probed by the relay's health monitor
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv, err := httpserver.New(fmt.Sprintf(":%d", *port), r, httpserver.Options{})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Starting mock backend", slog.String("addr", srv.Addr()))
	if err := srv.Start(); err != nil {
		log.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/angeloszaimis/engagement-relay/config"
	"github.com/angeloszaimis/engagement-relay/internal/database"
	"github.com/angeloszaimis/engagement-relay/internal/diagnostic"
	"github.com/angeloszaimis/engagement-relay/internal/healthcheck"
	"github.com/angeloszaimis/engagement-relay/internal/httpserver"
	"github.com/angeloszaimis/engagement-relay/internal/metrics"
	"github.com/angeloszaimis/engagement-relay/internal/relay"
	"github.com/angeloszaimis/engagement-relay/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	pool, err := initializePool(ctx, cfg.Database, log)
	if err != nil {
		log.Error("Failed to initialize database pool", slog.Any("err", err))
		os.Exit(1)
	}

	client := &http.Client{Timeout: config.Duration(cfg.Backend.Timeout)}
	rl := relay.New(log, client, cfg.Backend.URL, collector)

	monitor := initializeMonitor(ctx, cfg.HealthCheck, rl, collector, log)

	var pinger database.Pinger
	if pool != nil {
		pinger = pool
	}

	router := newRouter(log, routes{
		relay:      rl,
		diagnostic: diagnostic.New(log, nil),
		readiness:  healthcheck.NewReadiness(log, pinger, monitor),
		metrics:    collector.Handler(rl.BaseURL()),
	})

	srv, err := httpserver.New(cfg.Server.Address, router, httpserver.Options{
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:     config.Duration(cfg.Server.IdleTimeout),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout),
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting engagement relay",
			slog.String("addr", srv.Addr()),
			slog.String("backend", rl.BaseURL()),
			slog.Bool("database", pool != nil))
		srvErrCh <- srv.Start()
	}()

	exitCode := 0

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			exitCode = 1
		}
	}

	cancel()
	if pool != nil {
		pool.Close()
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// initializePool returns a nil pool when no connection string is configured.
func initializePool(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	if !cfg.Enabled() {
		log.Info("No database configured, running without a pool")
		return nil, nil
	}

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info("Database pool ready",
		slog.Int("max_conns", cfg.MaxConns),
		slog.String("idle_timeout", cfg.IdleTimeout))
	return pool, nil
}

// initializeMonitor starts the upstream health monitor, or returns nil when disabled.
func initializeMonitor(ctx context.Context, cfg config.HealthCheckConfig, rl *relay.Relay, collector *metrics.Collector, log *slog.Logger) *healthcheck.Monitor {
	if !cfg.Enabled {
		return nil
	}

	monitor := healthcheck.NewMonitor(log, rl.URL(cfg.Path), config.Duration(cfg.Interval), collector)
	go monitor.Run(ctx)

	return monitor
}

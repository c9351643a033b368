// Command analytics runs the standalone recommendation analytics service.
//
// It consumes recommendation and index-build events from Kafka, aggregates
// them in memory (request volume, latency percentiles, cache hit rate,
// zero-result rate, popular domains and skills) and serves the result at
// GET /api/v1/analytics. When PostgreSQL is reachable it also saves a
// snapshot every analytics.snapshotInterval.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rajat083/Internship-Recommender/internal/analytics"
	"github.com/Rajat083/Internship-Recommender/internal/analytics/aggregator"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/health"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/logger"
	"github.com/Rajat083/Internship-Recommender/pkg/middleware"
	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, "analytics")
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics aggregator consuming", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	} else {
		slog.Warn("kafka disabled, analytics service will not receive events")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval, cfg.Analytics.SnapshotRetention)

		snapshots := aggregator.NewHandler(store)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshots.List)
		mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", snapshots.Latest)
		checker.RegisterOptional("postgres", health.PingCheck(db.Ping))
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

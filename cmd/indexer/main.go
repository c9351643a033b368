// Command indexer keeps the persisted recommendation index current.
//
// It builds the vectorizer, index and id list when they are missing or
// inconsistent, then consumes internships.changed and rebuilds after each
// burst of changes, announcing every new generation on index.complete.
// Without Kafka it makes sure the artifacts exist and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rajat083/Internship-Recommender/internal/analytics"
	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/rebuild"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/logger"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, "indexer")
	slog.Info("starting indexer service",
		"data_source", cfg.DataSource.Driver,
		"artifact_backend", cfg.Artifacts.Backend,
		"debounce", cfg.Rebuild.Debounce,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	core, err := app.NewCore(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to initialize indexer core", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	if err := core.EnsureIndex(ctx); err != nil {
		slog.Error("initial index build failed", "error", err)
		if !cfg.Kafka.Enabled {
			os.Exit(1)
		}
	}

	if !cfg.Kafka.Enabled {
		slog.Info("kafka disabled, artifacts are current, exiting",
			"generation", core.Engine.Stats().Generation,
			"documents", core.Engine.Stats().Documents,
		)
		return
	}

	completeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer completeProducer.Close()
	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()

	collector := analytics.NewCollector(analyticsProducer, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	collector.Start(ctx)
	defer collector.Close()

	worker := rebuild.NewWorker(core.Builder, completeProducer, collector, cfg.Rebuild)
	go func() {
		if err := worker.Run(ctx); err != nil {
			slog.Error("rebuild worker error", "error", err)
		}
	}()

	changeConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.InternshipsChanged, rebuild.HandleChange(worker))

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.InternshipsChanged,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := changeConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("indexer service stopped", "rebuilds", worker.Builds())
}

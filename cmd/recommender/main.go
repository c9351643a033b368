// Command recommender serves internship recommendations over HTTP.
//
// On start it makes sure the vectorizer, index and id-list artifacts exist
// and agree, loads them into the search engine and listens for
// POST /api/v1/recommendations. Internships are imported through
// POST /api/v1/internships. With Kafka enabled the engine reloads whenever
// the indexer announces a new index generation; without it imports trigger
// an in-process rebuild.
//
// Usage:
//
//	go run ./cmd/recommender [-config configs/development.yaml]
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
	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/auth/apikey"
	ingesthandler "github.com/Rajat083/Internship-Recommender/internal/ingestion/handler"
	"github.com/Rajat083/Internship-Recommender/internal/ingestion/publisher"
	"github.com/Rajat083/Internship-Recommender/internal/rebuild"
	"github.com/Rajat083/Internship-Recommender/internal/recommend"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/health"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/logger"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	"github.com/Rajat083/Internship-Recommender/pkg/middleware"
	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
	"github.com/Rajat083/Internship-Recommender/pkg/ratelimit"
	pkgredis "github.com/Rajat083/Internship-Recommender/pkg/redis"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, "recommender")
	slog.Info("starting recommender service",
		"port", cfg.Server.Port,
		"data_source", cfg.DataSource.Driver,
		"artifact_backend", cfg.Artifacts.Backend,
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
		slog.Error("failed to initialize recommender core", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	if cfg.Rebuild.EnsureOnStart {
		if err := core.EnsureIndex(ctx); err != nil {
			slog.Error("index not available, serving 503 until it is built", "error", err)
		}
	}

	var cache *recommend.Cache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, recommendation caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cb := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				OnStateChange: app.BreakerMetrics(m),
			})
			cache = recommend.NewCache(redisClient, cfg.Redis.CacheTTL, cb, m)
			slog.Info("recommendation cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var invalidator rebuild.Invalidator
	if cache != nil {
		invalidator = cache
	}

	aggregator := analytics.NewAggregator()
	var eventPublisher kafka.BatchPublisher
	var changePublisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		eventPublisher = producer

		changeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.InternshipsChanged)
		defer changeProducer.Close()
		changePublisher = changeProducer

		instance := instanceID()
		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator),
			kafka.WithGroup(cfg.Kafka.ConsumerGroup+"-analytics-"+instance))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()

		// Every instance must see every announcement, so each joins its own group.
		reloadConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, rebuild.HandleIndexComplete(core.Engine, invalidator),
			kafka.WithGroup(cfg.Kafka.ConsumerGroup+"-reload-"+instance),
			kafka.WithHandlerAttempts(5))
		go func() {
			if err := reloadConsumer.Start(ctx); err != nil {
				slog.Error("index.complete consumer error", "error", err)
			}
		}()
		slog.Info("kafka wiring enabled",
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
			"index_complete_topic", cfg.Kafka.Topics.IndexComplete,
		)
	} else {
		eventPublisher = analytics.NewLocalPublisher(aggregator)
	}
	collector := analytics.NewCollector(eventPublisher, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	collector.Start(ctx)
	defer collector.Close()

	// Admin rebuilds go through a worker so every instance hears about the
	// new generation. Without a broker, imports also rebuild in-process.
	var notifier publisher.Notifier
	var worker *rebuild.Worker
	if cfg.Kafka.Enabled {
		completeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer completeProducer.Close()
		worker = rebuild.NewWorker(core.Builder, completeProducer, collector, cfg.Rebuild)
	} else {
		worker = rebuild.NewWorker(core.Builder, rebuild.NewLocalAnnouncer(rebuild.HandleIndexComplete(core.Engine, invalidator)), collector, cfg.Rebuild)
		go func() {
			if err := worker.Run(ctx); err != nil {
				slog.Error("rebuild worker error", "error", err)
			}
		}()
		notifier = worker
	}
	importer := publisher.New(core.Source, changePublisher, notifier, "recommender-api")

	var adminGuard func(http.Handler) http.Handler
	if cfg.Admin.Enabled {
		validators := apikey.Chain{apikey.NewStatic(cfg.Admin.APIKeys)}
		if cfg.Admin.UsePostgres {
			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				slog.Error("admin key store unavailable", "error", err)
				os.Exit(1)
			}
			defer db.Close()
			keys := apikey.NewStore(db)
			if err := keys.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare admin key table", "error", err)
				os.Exit(1)
			}
			validators = append(validators, keys)
		}
		adminGuard = apikey.Require(validators)
		slog.Info("admin routes require an api key", "static_keys", len(cfg.Admin.APIKeys), "postgres_keys", cfg.Admin.UsePostgres)
	}

	checker := health.NewChecker(health.WithVersion(version))
	checker.Register("search_index", func(ctx context.Context) health.ComponentHealth {
		if err := core.Engine.Ready(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		st := core.Engine.Stats()
		return health.ComponentHealth{Status: health.StatusUp, Details: map[string]any{
			"generation": st.Generation,
			"documents":  st.Documents,
			"vocabulary": st.VocabularySize,
		}}
	})
	checker.Register("datasource", health.PingCheck(core.Source.Ping))
	if redisClient != nil {
		checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
	}

	h := recommend.NewHandler(recommend.Deps{
		Engine:     core.Engine,
		Assembler:  recommend.NewAssembler(core.Engine, core.Source, m),
		Cache:      cache,
		Rebuilder:  worker,
		Collector:  collector,
		Metrics:    m,
		AdminGuard: adminGuard,
	}, cfg.Recommend, version)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux)
	ingesthandler.New(importer).Register(mux, adminGuard)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.RunCleanup(ctx, cfg.RateLimit.Window)
		chain = middleware.RateLimit(limiter)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
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

	slog.Info("recommender service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("recommender service stopped")
}

func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fmt.Sprintf("pid-%d", os.Getpid())
}

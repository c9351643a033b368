// Package app wires the recommender core from configuration. The HTTP
// service, the indexer and the admin CLI all build their data source,
// artifact store, vectorizer loader, index builder and search engine here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/builder"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/internal/vectorizer"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
)

// Core is the shared recommender machinery for one process.
type Core struct {
	Config  *config.Config
	Source  datasource.Store
	Store   artifact.Store
	Names   search.Artifacts
	Loader  *vectorizer.Loader
	Builder *builder.Builder
	Engine  *search.Engine
	Metrics *metrics.Metrics
	Breaker *resilience.CircuitBreaker
}

// VectorizerOptions converts the configured vectorizer settings.
func VectorizerOptions(cfg config.VectorizerConfig) vectorizer.Options {
	return vectorizer.Options{
		NGramMax:    cfg.NGramMax,
		MinDF:       cfg.MinDF,
		MaxDF:       cfg.MaxDF,
		MaxFeatures: cfg.MaxFeatures,
	}
}

// BreakerMetrics reports circuit breaker transitions to m. m may be nil.
func BreakerMetrics(m *metrics.Metrics) func(name string, state resilience.State) {
	if m == nil {
		return nil
	}
	return func(name string, state resilience.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// NewCore opens the data source and artifact store named in cfg and builds
// the components on top of them. m may be nil.
func NewCore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Core, error) {
	cb := resilience.NewCircuitBreaker("datasource", resilience.CircuitBreakerConfig{
		OnStateChange: BreakerMetrics(m),
	})
	src, err := datasource.Open(cfg, cb)
	if err != nil {
		return nil, fmt.Errorf("opening %s data source: %w", cfg.DataSource.Driver, err)
	}
	store, err := artifact.Open(ctx, cfg)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening %s artifact store: %w", cfg.Artifacts.Backend, err)
	}
	return newCore(cfg, src, store, cb, m), nil
}

// NewCoreWith builds a Core over an existing data source and store.
func NewCoreWith(cfg *config.Config, src datasource.Store, store artifact.Store, m *metrics.Metrics) *Core {
	return newCore(cfg, src, store, nil, m)
}

func newCore(cfg *config.Config, src datasource.Store, store artifact.Store, cb *resilience.CircuitBreaker, m *metrics.Metrics) *Core {
	names := search.ArtifactsFromConfig(cfg.Artifacts)
	loader := vectorizer.NewLoader(store, src, names.Vectorizer, VectorizerOptions(cfg.Vectorizer), cfg.Vectorizer.RetrainIfMissing)
	b := builder.New(builder.Config{
		Artifacts:     names,
		FetchAttempts: cfg.Rebuild.FetchAttempts,
	}, store, src, loader, m)

	var opts []search.Option
	if m != nil {
		opts = append(opts, search.WithMetrics(m))
	}
	slog.Debug("recommender core assembled",
		"data_source", cfg.DataSource.Driver,
		"artifact_backend", cfg.Artifacts.Backend,
	)
	return &Core{
		Config:  cfg,
		Source:  src,
		Store:   store,
		Names:   names,
		Loader:  loader,
		Builder: b,
		Engine:  search.NewEngine(store, names, opts...),
		Metrics: m,
		Breaker: cb,
	}
}

// EnsureIndex rebuilds missing or inconsistent artifacts and then loads the
// engine snapshot.
func (c *Core) EnsureIndex(ctx context.Context) error {
	err := resilience.WithTimeout(ctx, c.Config.Rebuild.Timeout, "ensure-index", func(ctx context.Context) error {
		built, err := c.Builder.EnsureBuilt(ctx)
		if err != nil {
			return err
		}
		if built {
			slog.Info("index artifacts rebuilt on start")
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = c.Engine.Reload(ctx)
	return err
}

func (c *Core) Close() error {
	return c.Source.Close()
}

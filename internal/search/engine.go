// Package search answers top-k similarity queries against the persisted
// internship index. The Engine loads the artifact set on first use and
// serves every later query from an immutable in-memory snapshot.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/vectorindex"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	"github.com/Rajat083/Internship-Recommender/pkg/proto"
	"github.com/Rajat083/Internship-Recommender/pkg/tracing"
)

// DefaultTopK is the result count used by RecommendTop5.
const DefaultTopK = 5

// Scored is an internship id with its cosine similarity to the query.
type Scored struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
}

// Engine serves searches from the current snapshot. Readers never block on
// each other; loading and reloading are serialized.
type Engine struct {
	store   artifact.Store
	names   Artifacts
	metrics *metrics.Metrics
	workers int
	logger  *slog.Logger

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records search latency and index gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWorkers sets the goroutine count for scanning large indexes.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// NewEngine creates an Engine over the artifacts named in names. Nothing is
// read until the first search, Ready or Reload.
func NewEngine(store artifact.Store, names Artifacts, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		names:  names,
		logger: slog.Default().With("component", "search-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the loaded snapshot, loading it on first use. A failed
// load is not remembered: the next call tries again.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := e.snap.Load(); s != nil {
		return s, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.snap.Load(); s != nil {
		return s, nil
	}
	s, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	e.publish(s)
	return s, nil
}

// Reload loads the artifact set again and swaps it in. Queries running
// during the swap finish against the snapshot they started with. On failure
// the current snapshot stays in place.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	prev := e.snap.Load()
	e.publish(s)
	if prev != nil && prev.Generation != s.Generation {
		e.logger.Info("snapshot replaced", "old_generation", prev.Generation, "new_generation", s.Generation)
	}
	return s, nil
}

func (e *Engine) load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	s, err := LoadSnapshot(ctx, e.store, e.names)
	if err != nil {
		e.logger.Warn("snapshot load failed", "error", err)
		return nil, err
	}
	e.logger.Info("snapshot loaded",
		"generation", s.Generation,
		"documents", s.Index.Len(),
		"dimension", s.Index.Dim(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

func (e *Engine) publish(s *Snapshot) {
	e.snap.Store(s)
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(s.Index.Len()))
		e.metrics.IndexDimension.Set(float64(s.Index.Dim()))
		e.metrics.IndexGeneration.Set(float64(s.Generation))
	}
}

// Loaded reports whether a snapshot is in memory.
func (e *Engine) Loaded() bool {
	return e.snap.Load() != nil
}

// SearchVector returns the k rows most similar to query. query must have
// the index dimension; it is normalized on a copy.
func (e *Engine) SearchVector(ctx context.Context, query []float32, k int) ([]vectorindex.Hit, error) {
	s, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.searchSnapshot(ctx, s, query, k)
}

func (e *Engine) searchSnapshot(ctx context.Context, s *Snapshot, query []float32, k int) ([]vectorindex.Hit, error) {
	_, span := tracing.StartChildSpan(ctx, "search.scan")
	defer span.End()
	start := time.Now()
	hits, err := s.Index.SearchParallel(query, k, e.workers)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	}
	span.SetAttr("k", k)
	span.SetAttr("hits", len(hits))
	return hits, nil
}

// SearchWithScores vectorizes text and returns up to k internship ids with
// their similarity, best first. Text with no known terms yields an empty
// result rather than an error.
func (e *Engine) SearchWithScores(ctx context.Context, text string, k int) ([]Scored, error) {
	s, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	vec := s.Model.Transform(text)
	if vec.Len() == 0 {
		e.logger.Debug("query has no known terms", "query_len", len(text))
		return []Scored{}, nil
	}
	hits, err := e.searchSnapshot(ctx, s, s.Model.Dense(vec), k)
	if err != nil {
		return nil, err
	}
	out := make([]Scored, len(hits))
	for i, h := range hits {
		out[i] = Scored{ID: h.ID, Score: float64(h.Score)}
	}
	return out, nil
}

// RecommendTop5 returns the ids of the five best matches for text.
func (e *Engine) RecommendTop5(ctx context.Context, text string) ([]int64, error) {
	scored, err := e.SearchWithScores(ctx, text, DefaultTopK)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
	}
	return ids, nil
}

// Stats describes the snapshot in memory without loading one.
func (e *Engine) Stats() proto.IndexStats {
	s := e.snap.Load()
	if s == nil {
		return proto.IndexStats{}
	}
	return proto.IndexStats{
		Loaded:         true,
		Generation:     s.Generation,
		Documents:      s.Index.Len(),
		Dimension:      s.Index.Dim(),
		VocabularySize: s.Model.Dim(),
		LoadedAt:       s.LoadedAt.UTC().Format(time.RFC3339),
	}
}

// Ready loads the snapshot if needed and reports whether queries can be
// served. It is used by readiness probes.
func (e *Engine) Ready(ctx context.Context) error {
	_, err := e.Snapshot(ctx)
	return err
}

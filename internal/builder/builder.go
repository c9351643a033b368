// Package builder turns the active internships into a persisted vector
// index. A rebuild vectorizes every internship with the stored TF-IDF
// model, normalizes the rows and writes the index and id list as a pair
// stamped with one generation.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/internal/textnorm"
	"github.com/Rajat083/Internship-Recommender/internal/vectorindex"
	"github.com/Rajat083/Internship-Recommender/internal/vectorizer"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// Config tunes a Builder.
type Config struct {
	Artifacts     search.Artifacts
	FetchAttempts int
	// Workers bounds the goroutines vectorizing documents. Zero uses
	// GOMAXPROCS.
	Workers int
}

// Result is an index built in memory but not yet persisted.
type Result struct {
	Index      *vectorindex.Flat
	Model      *vectorizer.Model
	Documents  int
	Skipped    int
	Degenerate int
	Duration   time.Duration
}

// Report summarizes a persisted rebuild.
type Report struct {
	Generation uint64
	Documents  int
	Dimension  int
	Skipped    int
	Degenerate int
	Duration   time.Duration
}

// Builder builds and persists the index. At most one rebuild runs at a time.
type Builder struct {
	cfg     Config
	store   artifact.Store
	source  datasource.Source
	loader  *vectorizer.Loader
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	lastGen uint64
}

// New creates a Builder. m may be nil.
func New(cfg Config, store artifact.Store, source datasource.Source, loader *vectorizer.Loader, m *metrics.Metrics) *Builder {
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	return &Builder{
		cfg:     cfg,
		store:   store,
		source:  source,
		loader:  loader,
		metrics: m,
		logger:  slog.Default().With("component", "index-builder"),
		now:     time.Now,
	}
}

type document struct {
	id   int64
	text string
}

// Build fetches active internships, vectorizes them with the model
// currently in the store and returns an in-memory index. Internships whose
// text normalizes to nothing are skipped; if none remain Build fails with
// ErrEmptyIndex. Rows with no vocabulary terms are kept as zero vectors and
// counted in Result.Degenerate.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	return b.build(ctx, nil)
}

// build uses model when it is non-nil and the stored model otherwise.
func (b *Builder) build(ctx context.Context, model *vectorizer.Model) (*Result, error) {
	start := b.now()
	docs, skipped, err := b.fetchDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("building index from %d internships: %w", skipped, apperrors.ErrEmptyIndex)
	}

	if model == nil {
		if model, err = b.loader.Current(ctx); err != nil {
			return nil, fmt.Errorf("loading vectorizer: %w", err)
		}
	}

	rows, degenerate, err := b.vectorize(ctx, model, docs)
	if err != nil {
		return nil, err
	}
	flat := vectorindex.NewFlat(model.Dim())
	for i, d := range docs {
		if err := flat.Add(d.id, rows[i]); err != nil {
			return nil, fmt.Errorf("adding internship %d: %w", d.id, err)
		}
	}
	if degenerate > 0 {
		b.logger.Warn("internships without vocabulary terms indexed as zero vectors", "count", degenerate)
	}
	return &Result{
		Index:      flat,
		Model:      model,
		Documents:  len(docs),
		Skipped:    skipped,
		Degenerate: degenerate,
		Duration:   b.now().Sub(start),
	}, nil
}

func (b *Builder) fetchDocuments(ctx context.Context) ([]document, int, error) {
	var rows []datasource.Internship
	err := resilience.Retry(ctx, "fetch-internships", resilience.RetryConfig{
		MaxAttempts:  b.cfg.FetchAttempts,
		InitialDelay: 200 * time.Millisecond,
	}, func() error {
		var err error
		rows, err = b.source.FetchInternships(ctx, datasource.Filter{ActiveOnly: true})
		if ctx.Err() != nil {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fetching internships: %w", err)
	}

	docs := make([]document, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		text := r.Text()
		if textnorm.Normalize(text) == "" {
			skipped++
			continue
		}
		docs = append(docs, document{id: r.ID, text: text})
	}
	return docs, skipped, nil
}

func (b *Builder) vectorize(ctx context.Context, model *vectorizer.Model, docs []document) ([][]float32, int, error) {
	workers := b.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rows := make([][]float32, len(docs))
	var degenerate int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(docs) + workers - 1) / workers
	for from := 0; from < len(docs); from += chunk {
		to := min(from+chunk, len(docs))
		g.Go(func() error {
			zero := 0
			for i := from; i < to; i++ {
				if i%256 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				row := model.Dense(model.Transform(docs[i].text))
				if !vectorindex.NormalizeL2(row) {
					zero++
				}
				rows[i] = row
			}
			mu.Lock()
			degenerate += zero
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("vectorizing internships: %w", err)
	}
	return rows, degenerate, nil
}

// Persist writes res as a new generation: index first, then the id list.
// Each write replaces its artifact atomically; a crash between the two
// leaves a pair whose generations differ, which loading rejects.
func (b *Builder) Persist(ctx context.Context, res *Result) (uint64, error) {
	gen := b.nextGeneration()
	names := b.cfg.Artifacts
	if err := b.store.Write(ctx, names.Index, vectorindex.EncodeIndex(res.Index, gen, res.Model.Checksum())); err != nil {
		return 0, fmt.Errorf("persisting index: %w", err)
	}
	if err := b.store.Write(ctx, names.IDs, vectorindex.EncodeIDs(res.Index.IDs(), gen)); err != nil {
		return 0, fmt.Errorf("persisting id list: %w", err)
	}
	b.logger.Info("index persisted",
		"generation", gen,
		"documents", res.Index.Len(),
		"index", b.store.Location(names.Index),
		"ids", b.store.Location(names.IDs),
	)
	return gen, nil
}

func (b *Builder) nextGeneration() uint64 {
	gen := uint64(b.now().UnixNano())
	if gen <= b.lastGen {
		gen = b.lastGen + 1
	}
	b.lastGen = gen
	return gen
}

// Rebuild runs Build and Persist. It fails with ErrRebuildInProgress if
// another rebuild holds the builder.
func (b *Builder) Rebuild(ctx context.Context) (*Report, error) {
	if !b.mu.TryLock() {
		return nil, apperrors.ErrRebuildInProgress
	}
	defer b.mu.Unlock()
	return b.rebuildLocked(ctx, nil)
}

// Retrain fits a fresh vectorizer from the current internships and
// rebuilds the index with it. The model is saved only after the index and
// id list are written, so a failed build leaves the stored set unchanged.
func (b *Builder) Retrain(ctx context.Context) (*Report, error) {
	if !b.mu.TryLock() {
		return nil, apperrors.ErrRebuildInProgress
	}
	defer b.mu.Unlock()
	model, err := b.loader.Fit(ctx)
	if err != nil {
		b.record("failure", 0, nil)
		return nil, fmt.Errorf("retraining vectorizer: %w", err)
	}
	return b.rebuildLocked(ctx, model)
}

func (b *Builder) rebuildLocked(ctx context.Context, model *vectorizer.Model) (*Report, error) {
	start := b.now()
	res, err := b.build(ctx, model)
	if err != nil {
		b.record("failure", b.now().Sub(start), nil)
		return nil, err
	}
	gen, err := b.Persist(ctx, res)
	if err != nil {
		b.record("failure", b.now().Sub(start), nil)
		return nil, err
	}
	if model != nil {
		if err := b.loader.Commit(ctx, model); err != nil {
			b.record("failure", b.now().Sub(start), nil)
			return nil, fmt.Errorf("persisting retrained vectorizer: %w", err)
		}
	}
	report := &Report{
		Generation: gen,
		Documents:  res.Documents,
		Dimension:  res.Index.Dim(),
		Skipped:    res.Skipped,
		Degenerate: res.Degenerate,
		Duration:   b.now().Sub(start),
	}
	b.record("success", report.Duration, report)
	b.logger.Info("index rebuilt",
		"generation", gen,
		"documents", report.Documents,
		"dimension", report.Dimension,
		"skipped", report.Skipped,
		"degenerate", report.Degenerate,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (b *Builder) record(status string, d time.Duration, r *Report) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if d > 0 {
		b.metrics.IndexBuildDuration.Observe(d.Seconds())
	}
	if r != nil {
		b.metrics.DegenerateRows.Set(float64(r.Degenerate))
	}
}

// Verify loads the persisted artifact set and reports why it cannot be
// served, or nil if it can.
func (b *Builder) Verify(ctx context.Context) error {
	_, err := search.LoadSnapshot(ctx, b.store, b.cfg.Artifacts)
	return err
}

// EnsureBuilt rebuilds the index if an artifact is missing, corrupt or out
// of step with the others, and does nothing otherwise. It reports whether
// a rebuild ran. A corrupt vectorizer is retrained first.
func (b *Builder) EnsureBuilt(ctx context.Context) (bool, error) {
	err := b.Verify(ctx)
	if err == nil {
		return false, nil
	}
	var rebuild func(context.Context) (*Report, error)
	switch {
	case errors.Is(err, vectorizer.ErrCorruptModel):
		rebuild = b.Retrain
	case errors.Is(err, apperrors.ErrArtifactMissing),
		errors.Is(err, apperrors.ErrArtifactMismatch),
		errors.Is(err, vectorindex.ErrCorrupt):
		rebuild = b.Rebuild
	default:
		return false, err
	}
	b.logger.Info("index not usable, rebuilding", "reason", err)
	if _, err := rebuild(ctx); err != nil {
		return false, err
	}
	return true, nil
}

package vectorizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

// Save encodes m and writes it to store under name.
func Save(ctx context.Context, store artifact.Store, name string, m *Model) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := store.Write(ctx, name, data); err != nil {
		return fmt.Errorf("saving vectorizer to %s: %w", store.Location(name), err)
	}
	return nil
}

// Load reads and decodes the model stored under name. A missing artifact
// yields an error wrapping ErrModelNotFound that names its location.
func Load(ctx context.Context, store artifact.Store, name string) (*Model, error) {
	ok, err := store.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrModelNotFound, apperrors.MissingArtifact("vectorizer", store.Location(name)))
	}
	data, err := store.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading vectorizer: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading vectorizer from %s: %w", store.Location(name), err)
	}
	return m, nil
}

// Corpus fetches active internships and returns their non-empty texts.
func Corpus(ctx context.Context, src datasource.Source) ([]string, error) {
	rows, err := src.FetchInternships(ctx, datasource.Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	corpus := make([]string, 0, len(rows))
	for _, r := range rows {
		if text := r.Text(); text != "" {
			corpus = append(corpus, text)
		}
	}
	return corpus, nil
}

// Loader resolves the persisted model, training one from the data source
// when it is missing and retraining is allowed.
type Loader struct {
	store            artifact.Store
	source           datasource.Source
	name             string
	opts             Options
	retrainIfMissing bool
	logger           *slog.Logger

	mu     sync.Mutex
	cached *Model
}

// NewLoader creates a Loader for the model stored under name. With
// retrainIfMissing a missing model is fitted from source and saved.
func NewLoader(store artifact.Store, source datasource.Source, name string, opts Options, retrainIfMissing bool) *Loader {
	return &Loader{
		store:            store,
		source:           source,
		name:             name,
		opts:             opts,
		retrainIfMissing: retrainIfMissing,
		logger:           slog.Default().With("component", "vectorizer-loader"),
	}
}

// LoadOrTrain returns the stored model. When it is absent it trains and
// saves a new one if retraining is enabled, and otherwise fails with
// ErrModelNotFound. A model obtained once is reused by later calls.
func (l *Loader) LoadOrTrain(ctx context.Context) (*Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil {
		return l.cached, nil
	}
	return l.loadLocked(ctx)
}

// Current rereads the stored model and replaces the cached one, so a model
// retrained by another process is picked up. A missing model is handled as
// in LoadOrTrain.
func (l *Loader) Current(ctx context.Context) (*Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.cached
	l.cached = nil
	m, err := l.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.Checksum() != m.Checksum() {
		l.logger.Info("stored vectorizer changed, replacing cached model",
			"previous_vocabulary", prev.Dim(), "vocabulary", m.Dim())
	}
	return m, nil
}

func (l *Loader) loadLocked(ctx context.Context) (*Model, error) {
	ok, err := l.store.Exists(ctx, l.name)
	if err != nil {
		return nil, fmt.Errorf("checking vectorizer artifact: %w", err)
	}
	var m *Model
	switch {
	case ok:
		m, err = Load(ctx, l.store, l.name)
	case l.retrainIfMissing:
		l.logger.Info("vectorizer missing, training", "location", l.store.Location(l.name))
		if m, err = l.fit(ctx); err == nil {
			err = l.saveLocked(ctx, m)
		}
	default:
		err = fmt.Errorf("%w: %w", apperrors.ErrModelNotFound, apperrors.MissingArtifact("vectorizer", l.store.Location(l.name)))
	}
	if err != nil {
		return nil, err
	}
	l.cached = m
	return m, nil
}

// Train fits a new model and saves it. Without force an existing stored
// model is loaded instead.
func (l *Loader) Train(ctx context.Context, force bool) (*Model, error) {
	if !force {
		return l.LoadOrTrain(ctx)
	}
	m, err := l.Fit(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.Commit(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Fit trains a model on the current corpus without saving it or touching
// the cache.
func (l *Loader) Fit(ctx context.Context) (*Model, error) {
	return l.fit(ctx)
}

// Commit saves m as the stored model and caches it.
func (l *Loader) Commit(ctx context.Context, m *Model) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.saveLocked(ctx, m); err != nil {
		return err
	}
	l.cached = m
	return nil
}

func (l *Loader) fit(ctx context.Context) (*Model, error) {
	start := time.Now()
	corpus, err := Corpus(ctx, l.source)
	if err != nil {
		return nil, fmt.Errorf("fetching training corpus: %w", err)
	}
	m, err := Fit(corpus, l.opts)
	if err != nil {
		return nil, err
	}
	l.logger.Info("vectorizer trained",
		"documents", len(corpus),
		"vocabulary", m.Dim(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}

func (l *Loader) saveLocked(ctx context.Context, m *Model) error {
	if err := Save(ctx, l.store, l.name, m); err != nil {
		return err
	}
	l.logger.Info("vectorizer saved", "location", l.store.Location(l.name), "vocabulary", m.Dim())
	return nil
}

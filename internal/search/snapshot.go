package search

import (
	"context"
	"fmt"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/vectorindex"
	"github.com/Rajat083/Internship-Recommender/internal/vectorizer"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

// Artifacts names the three persisted artifacts a snapshot is built from.
type Artifacts struct {
	Index      string
	IDs        string
	Vectorizer string
}

// ArtifactsFromConfig returns the artifact names configured in cfg.
func ArtifactsFromConfig(cfg config.ArtifactsConfig) Artifacts {
	return Artifacts{
		Index:      cfg.IndexName,
		IDs:        cfg.IDsName,
		Vectorizer: cfg.VectorizerName,
	}
}

// Snapshot is an immutable index, id list and model that belong together.
type Snapshot struct {
	Index      *vectorindex.Flat
	Model      *vectorizer.Model
	Generation uint64
	BuiltAt    time.Time
	LoadedAt   time.Time
}

// LoadSnapshot reads and cross-checks the artifact set. A missing artifact
// yields an ArtifactMissingError for the first one absent, checked in the
// order index, ids, vectorizer. An index built from a different vocabulary
// than the stored model yields ErrArtifactMismatch.
func LoadSnapshot(ctx context.Context, store artifact.Store, names Artifacts) (*Snapshot, error) {
	for _, a := range []struct{ kind, name string }{
		{"index", names.Index},
		{"id list", names.IDs},
		{"vectorizer", names.Vectorizer},
	} {
		ok, err := store.Exists(ctx, a.name)
		if err != nil {
			return nil, fmt.Errorf("checking %s artifact: %w", a.kind, err)
		}
		if !ok {
			return nil, apperrors.MissingArtifact(a.kind, store.Location(a.name))
		}
	}

	indexData, err := store.Read(ctx, names.Index)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	idsData, err := store.Read(ctx, names.IDs)
	if err != nil {
		return nil, fmt.Errorf("reading id list: %w", err)
	}
	flat, header, err := vectorindex.DecodePair(indexData, idsData)
	if err != nil {
		return nil, err
	}
	model, err := vectorizer.Load(ctx, store, names.Vectorizer)
	if err != nil {
		return nil, err
	}
	if model.Dim() != header.Dim {
		return nil, fmt.Errorf("%w: index dimension %d, vocabulary size %d", apperrors.ErrArtifactMismatch, header.Dim, model.Dim())
	}
	if model.Checksum() != header.VocabChecksum {
		return nil, fmt.Errorf("%w: index was built with a different vocabulary", apperrors.ErrArtifactMismatch)
	}
	return &Snapshot{
		Index:      flat,
		Model:      model,
		Generation: header.Generation,
		BuiltAt:    header.CreatedAt,
		LoadedAt:   time.Now(),
	}, nil
}

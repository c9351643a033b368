// Package artifact persists the vectorizer model, the vector index and the
// internship id list. Writes are atomic per artifact: readers observe either
// the previous bytes or the new bytes, never a partial file.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rajat083/Internship-Recommender/pkg/config"
)

// ErrNotExist is returned by Read when the named artifact is absent.
var ErrNotExist = errors.New("artifact does not exist")

// Store reads and writes named artifacts.
type Store interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	// Location describes where name lives, for log and error messages.
	Location(name string) string
}

// Open returns the store selected by cfg.Artifacts.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Artifacts.Backend {
	case "fs":
		return NewFS(cfg.Artifacts.Dir), nil
	case "minio":
		return NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Artifacts.Backend)
	}
}

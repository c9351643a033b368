package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FS stores artifacts as files in a directory.
type FS struct {
	dir    string
	logger *slog.Logger
}

// NewFS returns a Store rooted at dir. The directory is created on the first
// write.
func NewFS(dir string) *FS {
	return &FS{
		dir:    dir,
		logger: slog.Default().With("component", "artifact-fs", "dir", dir),
	}
}

func (s *FS) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Location returns the file path of name.
func (s *FS) Location(name string) string {
	return s.path(name)
}

func (s *FS) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, s.path(name))
		}
		return nil, fmt.Errorf("reading artifact %s: %w", s.path(name), err)
	}
	return data, nil
}

func (s *FS) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat artifact %s: %w", s.path(name), err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("artifact %s is a directory", s.path(name))
	}
	return true, nil
}

// Write atomically replaces name with data. It writes to a temp file in the
// same directory, syncs it and renames it over the target.
func (s *FS) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	finalPath := s.path(name)
	f, err := os.CreateTemp(s.dir, filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	tmpPath := f.Name()
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming artifact into place: %w", err)
	}
	committed = true
	s.logger.Debug("artifact written", "name", name, "bytes", len(data))
	return nil
}

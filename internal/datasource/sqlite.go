package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS internships (
	internship_id    INTEGER PRIMARY KEY,
	internship_title TEXT NOT NULL,
	company          TEXT NOT NULL DEFAULT '',
	domain           TEXT NOT NULL DEFAULT '',
	required_skills  TEXT,
	stipend          REAL,
	is_active        INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_internships_active ON internships (is_active);
`

// SQLite reads internships from a local database file. It is used for
// offline development and tests.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the internships schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &SQLite{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "datasource-sqlite", "path", path),
	}, nil
}

func (s *SQLite) FetchInternships(ctx context.Context, f Filter) ([]Internship, error) {
	query := `SELECT ` + selectColumns + ` FROM internships`
	if f.ActiveOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY internship_id`
	args := []any{}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching internships: %w", err)
	}
	out, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("internships fetched", "count", len(out), "active_only", f.ActiveOnly)
	return out, nil
}

func (s *SQLite) FetchByIDs(ctx context.Context, ids []int64) ([]Internship, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + selectColumns + ` FROM internships WHERE internship_id IN (` + placeholders + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching internships by id: %w", err)
	}
	return scanAll(rows)
}

func (s *SQLite) Upsert(ctx context.Context, rows []Internship) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO internships (internship_id, internship_title, company, domain, required_skills, stipend, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (internship_id) DO UPDATE SET
	internship_title = excluded.internship_title,
	company          = excluded.company,
	domain           = excluded.domain,
	required_skills  = excluded.required_skills,
	stipend          = excluded.stipend,
	is_active        = excluded.is_active`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Title, r.Company, r.Domain, r.RequiredSkills, r.Stipend, r.Active); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("upserting internship %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return len(rows), nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

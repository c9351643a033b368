// Package datasource reads internship rows for index building and for
// hydrating recommendation results.
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
)

// Internship is one row of the internships table.
type Internship struct {
	ID             int64   `json:"internship_id"`
	Title          string  `json:"internship_title"`
	Company        string  `json:"company"`
	Domain         string  `json:"domain"`
	RequiredSkills string  `json:"required_skills"`
	Stipend        float64 `json:"stipend"`
	Active         bool    `json:"is_active"`
}

// Text is the document text indexed for the internship: the non-empty
// title, company, domain and required skills joined by single spaces.
func (i Internship) Text() string {
	parts := make([]string, 0, 4)
	for _, f := range []string{i.Title, i.Company, i.Domain, i.RequiredSkills} {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Filter narrows FetchInternships. A zero Limit means no limit.
type Filter struct {
	ActiveOnly bool
	Limit      int
}

// Source is the read side used by the index builder and the assembler.
type Source interface {
	// FetchInternships returns rows ordered by id.
	FetchInternships(ctx context.Context, f Filter) ([]Internship, error)
	// FetchByIDs returns the rows whose ids are in ids. Missing ids are
	// skipped and the result order is not guaranteed.
	FetchByIDs(ctx context.Context, ids []int64) ([]Internship, error)
}

// Store is a Source that can also be written to and probed.
type Store interface {
	Source
	// Upsert inserts or replaces rows by id and returns the number written.
	Upsert(ctx context.Context, rows []Internship) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by cfg.DataSource.Driver. The breaker
// may be nil.
func Open(cfg *config.Config, cb *resilience.CircuitBreaker) (Store, error) {
	switch cfg.DataSource.Driver {
	case "postgres":
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return NewPostgres(client, cb), nil
	case "sqlite":
		return OpenSQLite(context.Background(), cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown data source driver %q", cfg.DataSource.Driver)
	}
}

const selectColumns = `internship_id, internship_title, company, domain, required_skills, stipend, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInternship(s rowScanner) (Internship, error) {
	var (
		in      Internship
		company sql.NullString
		domain  sql.NullString
		skills  sql.NullString
		stipend sql.NullFloat64
	)
	if err := s.Scan(&in.ID, &in.Title, &company, &domain, &skills, &stipend, &in.Active); err != nil {
		return Internship{}, err
	}
	in.Company = company.String
	in.Domain = domain.String
	in.RequiredSkills = skills.String
	in.Stipend = stipend.Float64
	return in, nil
}

func scanAll(rows *sql.Rows) ([]Internship, error) {
	defer rows.Close()
	var out []Internship
	for rows.Next() {
		in, err := scanInternship(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning internship row: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating internship rows: %w", err)
	}
	return out, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

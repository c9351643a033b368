package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
	"github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS internships (
	internship_id    BIGSERIAL PRIMARY KEY,
	internship_title TEXT NOT NULL,
	company          TEXT NOT NULL DEFAULT '',
	domain           TEXT NOT NULL DEFAULT '',
	required_skills  TEXT,
	stipend          DOUBLE PRECISION,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_internships_active ON internships (is_active);
`

// Postgres reads internships through lib/pq.
type Postgres struct {
	client *postgres.Client
	cb     *resilience.CircuitBreaker
	logger *slog.Logger
}

// NewPostgres serves internships from client. cb guards the read queries
// and may be nil.
func NewPostgres(client *postgres.Client, cb *resilience.CircuitBreaker) *Postgres {
	return &Postgres{
		client: client,
		cb:     cb,
		logger: slog.Default().With("component", "datasource-postgres"),
	}
}

// EnsureSchema creates the internships table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.client.DB.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating internships schema: %w", err)
	}
	return nil
}

func (p *Postgres) guard(fn func() error) error {
	if p.cb == nil {
		return fn()
	}
	return p.cb.Execute(fn)
}

func (p *Postgres) FetchInternships(ctx context.Context, f Filter) ([]Internship, error) {
	query := `SELECT ` + selectColumns + ` FROM internships`
	if f.ActiveOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY internship_id`
	args := []any{}
	if f.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, f.Limit)
	}

	var out []Internship
	err := p.guard(func() error {
		rows, err := p.client.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = scanAll(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching internships: %w", err)
	}
	p.logger.Debug("internships fetched", "count", len(out), "active_only", f.ActiveOnly)
	return out, nil
}

func (p *Postgres) FetchByIDs(ctx context.Context, ids []int64) ([]Internship, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + selectColumns + ` FROM internships WHERE internship_id = ANY($1)`
	var out []Internship
	err := p.guard(func() error {
		rows, err := p.client.DB.QueryContext(ctx, query, pq.Array(dedupeIDs(ids)))
		if err != nil {
			return err
		}
		out, err = scanAll(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching internships by id: %w", err)
	}
	return out, nil
}

func (p *Postgres) Upsert(ctx context.Context, rows []Internship) (int, error) {
	const stmt = `
INSERT INTO internships (internship_id, internship_title, company, domain, required_skills, stipend, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (internship_id) DO UPDATE SET
	internship_title = EXCLUDED.internship_title,
	company          = EXCLUDED.company,
	domain           = EXCLUDED.domain,
	required_skills  = EXCLUDED.required_skills,
	stipend          = EXCLUDED.stipend,
	is_active        = EXCLUDED.is_active`

	err := p.client.InTx(ctx, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer prepared.Close()
		for _, r := range rows {
			if _, err := prepared.ExecContext(ctx, r.ID, r.Title, r.Company, r.Domain, r.RequiredSkills, r.Stipend, r.Active); err != nil {
				return fmt.Errorf("upserting internship %d: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Postgres) Close() error {
	return p.client.Close()
}

// Package aggregator keeps a PostgreSQL history of the analytics aggregate
// so the dashboard survives restarts of the analytics service and can plot
// usage across index generations.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/analytics"
	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS recommendation_analytics_snapshots (
    id                    BIGSERIAL PRIMARY KEY,
    captured_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    index_generation      BIGINT NOT NULL DEFAULT 0,
    total_recommendations BIGINT NOT NULL DEFAULT 0,
    stats                 JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS recommendation_analytics_snapshots_captured_at
    ON recommendation_analytics_snapshots (captured_at DESC)`

// Snapshot is one stored copy of the aggregate.
type Snapshot struct {
	ID         int64                     `json:"id"`
	CapturedAt time.Time                 `json:"captured_at"`
	Generation uint64                    `json:"index_generation"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

type Store struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating snapshot table: %w", err)
	}
	return nil
}

// Save stores stats and returns the new row id.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) (int64, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}
	var id int64
	err = s.db.DB.QueryRowContext(ctx, `
		INSERT INTO recommendation_analytics_snapshots
		    (captured_at, index_generation, total_recommendations, stats)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		s.now().UTC(), int64(stats.LastGeneration), stats.TotalRecommendations, data,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting snapshot: %w", err)
	}
	return id, nil
}

// Prune deletes snapshots captured before now minus retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM recommendation_analytics_snapshots WHERE captured_at < $1`,
		s.now().UTC().Add(-retention),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}

// LatestSnapshot returns the newest snapshot, or nil when none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.DB.QueryRowContext(ctx, `
		SELECT id, captured_at, index_generation, stats
		FROM recommendation_analytics_snapshots
		ORDER BY captured_at DESC, id DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows whose
// stats no longer decode are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, captured_at, index_generation, stats
		FROM recommendation_analytics_snapshots
		ORDER BY captured_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0, limit)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "error", err)
			continue
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var (
		snap Snapshot
		gen  int64
		data []byte
	)
	if err := row.Scan(&snap.ID, &snap.CapturedAt, &gen, &data); err != nil {
		return nil, err
	}
	snap.Generation = uint64(gen)
	if err := json.Unmarshal(data, &snap.Stats); err != nil {
		return nil, fmt.Errorf("decoding snapshot %d: %w", snap.ID, err)
	}
	return &snap, nil
}

// StartPeriodicSave snapshots agg every interval until ctx ends, then
// writes a final snapshot. A tick with no new recommendations or builds
// since the last save is skipped. Snapshots older than retention are
// pruned once per tick when retention is positive.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval, retention time.Duration) {
	s.logger.Info("periodic snapshots enabled", "interval", interval, "retention", retention)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last analytics.AggregatedStats
		for {
			select {
			case <-ticker.C:
				stats := agg.Stats()
				if !changedSince(last, stats) {
					continue
				}
				if _, err := s.Save(ctx, stats); err != nil {
					s.logger.Error("snapshot failed", "error", err)
					continue
				}
				last = stats
				if retention > 0 {
					if n, err := s.Prune(ctx, retention); err != nil {
						s.logger.Warn("snapshot pruning failed", "error", err)
					} else if n > 0 {
						s.logger.Debug("pruned snapshots", "deleted", n)
					}
				}
			case <-ctx.Done():
				final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := s.Save(final, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
}

func changedSince(prev, cur analytics.AggregatedStats) bool {
	return cur.TotalRecommendations != prev.TotalRecommendations ||
		cur.IndexBuilds != prev.IndexBuilds ||
		cur.LastGeneration != prev.LastGeneration
}

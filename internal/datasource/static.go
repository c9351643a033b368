package datasource

import (
	"context"
	"sort"
	"sync"
)

// Static is an in-memory Store.
type Static struct {
	mu   sync.RWMutex
	rows map[int64]Internship
}

// NewStatic returns a Static holding rows. A later row replaces an earlier
// one with the same id.
func NewStatic(rows ...Internship) *Static {
	s := &Static{rows: make(map[int64]Internship, len(rows))}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *Static) FetchInternships(ctx context.Context, f Filter) ([]Internship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Internship, 0, len(s.rows))
	for _, r := range s.rows {
		if f.ActiveOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Static) FetchByIDs(ctx context.Context, ids []int64) ([]Internship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Internship, 0, len(ids))
	for _, id := range dedupeIDs(ids) {
		if r, ok := s.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Static) Upsert(_ context.Context, rows []Internship) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return len(rows), nil
}

// Delete removes the rows with the given ids.
func (s *Static) Delete(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.rows, id)
	}
}

func (s *Static) Ping(context.Context) error { return nil }
func (s *Static) Close() error               { return nil }

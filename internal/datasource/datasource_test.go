package datasource

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
)

var fixture = []Internship{
	{ID: 10, Title: "Data Analyst Intern", Company: "Acme", Domain: "Data Science", RequiredSkills: "Python, SQL, Excel", Stipend: 15000, Active: true},
	{ID: 20, Title: "Backend Intern", Company: "Globex", Domain: "Software", RequiredSkills: "Java, Spring", Active: true},
	{ID: 30, Title: "Archived Role", Company: "Initech", Domain: "Finance", RequiredSkills: "Excel", Active: false},
}

func TestInternshipText(t *testing.T) {
	in := Internship{Title: " Data Analyst ", Company: "", Domain: "Data", RequiredSkills: "Python, SQL"}
	if got := in.Text(); got != "Data Analyst Data Python, SQL" {
		t.Errorf("Text = %q", got)
	}
	if (Internship{}).Text() != "" {
		t.Error("empty internship should have empty text")
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if n, err := s.Upsert(ctx, fixture); err != nil || n != len(fixture) {
		t.Fatalf("Upsert = %d, %v", n, err)
	}

	active, err := s.FetchInternships(ctx, Filter{ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 || active[0].ID != 10 || active[1].ID != 20 {
		t.Fatalf("active = %+v", active)
	}
	if active[0].RequiredSkills != "Python, SQL, Excel" || active[0].Stipend != 15000 {
		t.Errorf("row not round-tripped: %+v", active[0])
	}

	limited, err := s.FetchInternships(ctx, Filter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited = %v, %v", limited, err)
	}

	got, err := s.FetchByIDs(ctx, []int64{30, 99, 10, 10})
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].ID < got[j].ID })
	if len(got) != 2 || got[0].ID != 10 || got[1].ID != 30 {
		t.Fatalf("FetchByIDs = %+v", got)
	}
	if got, err := s.FetchByIDs(ctx, nil); err != nil || len(got) != 0 {
		t.Errorf("FetchByIDs(nil) = %v, %v", got, err)
	}

	updated := fixture[1]
	updated.Active = false
	if _, err := s.Upsert(ctx, []Internship{updated}); err != nil {
		t.Fatal(err)
	}
	active, _ = s.FetchInternships(ctx, Filter{ActiveOnly: true})
	if len(active) != 1 {
		t.Errorf("after deactivation active = %d", len(active))
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestStatic(t *testing.T) {
	exerciseStore(t, NewStatic())
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "internships.db"))
	if err != nil {
		t.Skip("sqlite open:", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteNullColumns(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nulls.db"))
	if err != nil {
		t.Skip("sqlite open:", err)
	}
	defer s.Close()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO internships (internship_id, internship_title) VALUES (7, 'Untitled')`); err != nil {
		t.Fatal(err)
	}
	rows, err := s.FetchByIDs(ctx, []int64{7})
	if err != nil || len(rows) != 1 {
		t.Fatalf("FetchByIDs = %v, %v", rows, err)
	}
	if rows[0].Stipend != 0 || rows[0].RequiredSkills != "" || !rows[0].Active {
		t.Errorf("null handling: %+v", rows[0])
	}
}

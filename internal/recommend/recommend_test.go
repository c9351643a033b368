package recommend

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/builder"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/internal/vectorizer"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var testNames = search.Artifacts{
	Index:      "internships.index",
	IDs:        "internships.ids",
	Vectorizer: "vectorizer.json",
}

// fixture builds an index over rows and returns an engine serving it.
func fixture(t *testing.T, rows ...datasource.Internship) (*search.Engine, *datasource.Static, *builder.Builder) {
	t.Helper()
	store := artifact.NewMemory()
	src := datasource.NewStatic(rows...)
	loader := vectorizer.NewLoader(store, src, testNames.Vectorizer, vectorizer.DefaultOptions(), true)
	b := builder.New(builder.Config{Artifacts: testNames, FetchAttempts: 1}, store, src, loader, nil)
	if _, err := b.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	return search.NewEngine(store, testNames), src, b
}

func catalogue() []datasource.Internship {
	return []datasource.Internship{
		{ID: 1, Title: "Data Analyst Intern", Company: "Acme", Domain: "Data Science", RequiredSkills: "Python, SQL, Excel", Stipend: 15000, Active: true},
		{ID: 2, Title: "Backend Intern", Company: "Globex", Domain: "Web Development", RequiredSkills: "Java, Spring", Stipend: 12000, Active: true},
		{ID: 3, Title: "ML Intern", Company: "Initech", Domain: "Data Science", RequiredSkills: "Python, TensorFlow", Stipend: 20000, Active: true},
	}
}

func TestAssembleSingleDocumentIndex(t *testing.T) {
	engine, src, _ := fixture(t, datasource.Internship{
		ID: 7, Title: "Analyst", Company: "Acme", RequiredSkills: "python, sql", Active: true,
	})
	a := NewAssembler(engine, src, nil)

	got, err := a.Assemble(context.Background(), Query{Name: "Jane", Skills: []string{"python"}, Domain: "data", TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalRecommendations != 1 || len(got.Recommendations) != 1 {
		t.Fatalf("got %d recommendations, want 1", got.TotalRecommendations)
	}
	r := got.Recommendations[0]
	if r.Rank != 1 || r.InternshipID != "7" {
		t.Errorf("recommendation = %+v", r)
	}
	if len(r.RequiredSkills) != 2 || r.RequiredSkills[1] != "sql" {
		t.Errorf("required skills = %v", r.RequiredSkills)
	}
}

func TestRecommendByTextRanksAndRounds(t *testing.T) {
	engine, src, _ := fixture(t, catalogue()...)
	a := NewAssembler(engine, src, nil)

	recs, err := a.RecommendByText(context.Background(), "Data Science Python SQL", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].InternshipID != "1" || recs[1].InternshipID != "3" {
		t.Fatalf("order = %+v", recs)
	}
	for i, r := range recs {
		if r.Rank != i+1 {
			t.Errorf("rank[%d] = %d", i, r.Rank)
		}
		if i > 0 && r.SimilarityScore > recs[i-1].SimilarityScore {
			t.Errorf("scores not descending: %v", recs)
		}
		if scaled := r.SimilarityScore * 10000; math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Errorf("score %v not rounded to 4 places", r.SimilarityScore)
		}
	}
}

func TestRecommendDropsHitsMissingFromStore(t *testing.T) {
	engine, src, _ := fixture(t, catalogue()...)
	src.Delete(1)
	a := NewAssembler(engine, src, nil)

	recs, err := a.RecommendByText(context.Background(), "python sql", 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		if r.InternshipID == "1" {
			t.Fatal("deleted internship returned")
		}
	}
	if len(recs) != 2 || recs[0].Rank != 1 {
		t.Errorf("recs = %+v", recs)
	}
}

func TestRecommendUnknownTermsIsEmpty(t *testing.T) {
	engine, src, _ := fixture(t, catalogue()...)
	got, err := NewAssembler(engine, src, nil).Assemble(context.Background(), Query{Name: "x", Skills: []string{"knitting"}, Domain: "crafts", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalRecommendations != 0 || got.Recommendations == nil {
		t.Errorf("got %+v, want an empty non-nil list", got)
	}
}

type stubSearcher []search.Scored

func (s stubSearcher) SearchWithScores(context.Context, string, int) ([]search.Scored, error) {
	return s, nil
}

func TestEqualScoresKeepSearchOrder(t *testing.T) {
	src := datasource.NewStatic(
		datasource.Internship{ID: 5, Active: true},
		datasource.Internship{ID: 3, Active: true},
		datasource.Internship{ID: 9, Active: true},
	)
	a := NewAssembler(stubSearcher{{ID: 9, Score: 0.5}, {ID: 3, Score: 0.5}, {ID: 5, Score: 0.2}}, src, nil)
	recs, err := a.RecommendByText(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.InternshipID)
	}
	if strings.Join(ids, ",") != "9,3,5" {
		t.Errorf("order = %v", ids)
	}
}

func TestRecommendBeforeBuild(t *testing.T) {
	engine := search.NewEngine(artifact.NewMemory(), testNames)
	_, err := NewAssembler(engine, datasource.NewStatic(), nil).RecommendByText(context.Background(), "python", 5)
	if !errors.Is(err, apperrors.ErrArtifactMissing) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		details StudentDetails
		topK    int
		fields  []string
	}{
		{"ok", StudentDetails{Name: "Jane", Skills: []string{"Python"}, Domain: "Data"}, 5, nil},
		{"missing name", StudentDetails{Skills: []string{"Python"}, Domain: "Data"}, 5, []string{"name"}},
		{"blank skills", StudentDetails{Name: "Jane", Skills: []string{" ", ""}, Domain: "Data"}, 5, []string{"skills"}},
		{"no domain", StudentDetails{Name: "Jane", Skills: []string{"Go"}}, 5, []string{"domain"}},
		{"top_k zero", StudentDetails{Name: "Jane", Skills: []string{"Go"}, Domain: "Web"}, 0, []string{"top_k"}},
		{"top_k too big", StudentDetails{Name: "Jane", Skills: []string{"Go"}, Domain: "Web"}, 21, []string{"top_k"}},
		{"everything", StudentDetails{}, 50, []string{"name", "skills", "domain", "top_k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Validate(tt.details, tt.topK, 20)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if q.Name != "Jane" || q.TopK != tt.topK {
					t.Errorf("query = %+v", q)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Error("validation errors must wrap ErrInvalidInput")
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestValidateTrimsSkills(t *testing.T) {
	q, err := Validate(StudentDetails{Name: " Jane ", Skills: []string{" Python ", "", "SQL"}, Domain: " Data "}, 3, 20)
	if err != nil {
		t.Fatal(err)
	}
	if q.Text() != "Data Python SQL" {
		t.Errorf("text = %q", q.Text())
	}
}

func TestNewStudentID(t *testing.T) {
	id := NewStudentID()
	if len(id) != 8 || strings.ToUpper(id) != id {
		t.Errorf("id = %q", id)
	}
}

type memoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("connection refused")
	}
	m.data[key] = value.([]byte)
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestCacheGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := NewCache(newMemoryBackend(), time.Minute, nil, nil)
	var calls atomic.Int32
	compute := func() ([]Recommendation, error) {
		calls.Add(1)
		return []Recommendation{{Rank: 1, InternshipID: "4"}}, nil
	}

	recs, hit, err := c.GetOrCompute(ctx, "Python SQL", 5, 1, compute)
	if err != nil || hit || len(recs) != 1 {
		t.Fatalf("first call: %v %v %v", recs, hit, err)
	}
	recs, hit, err = c.GetOrCompute(ctx, "python,  sql", 5, 1, compute)
	if err != nil || !hit || recs[0].InternshipID != "4" {
		t.Fatalf("second call: %v %v %v", recs, hit, err)
	}
	if _, hit, _ = c.GetOrCompute(ctx, "python sql", 5, 2, compute); hit {
		t.Error("a new generation must miss")
	}
	if calls.Load() != 2 {
		t.Errorf("compute ran %d times, want 2", calls.Load())
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 2 {
		t.Errorf("hits=%d misses=%d", hits, misses)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ = c.GetOrCompute(ctx, "python sql", 5, 1, compute); hit {
		t.Error("hit after invalidate")
	}
}

func TestCacheBackendDownFallsThrough(t *testing.T) {
	backend := newMemoryBackend()
	backend.fail = true
	c := NewCache(backend, time.Minute, nil, nil)
	recs, hit, err := c.GetOrCompute(context.Background(), "go", 1, 1, func() ([]Recommendation, error) {
		return []Recommendation{{Rank: 1}}, nil
	})
	if err != nil || hit || len(recs) != 1 {
		t.Fatalf("got %v %v %v", recs, hit, err)
	}
}

func TestBuildKeyKeepsTermOrder(t *testing.T) {
	if BuildKey("machine learning", 5, 1) == BuildKey("learning machine", 5, 1) {
		t.Error("bigram order must change the key")
	}
	if BuildKey("Machine   Learning!", 5, 1) != BuildKey("machine learning", 5, 1) {
		t.Error("normalization must not change the key")
	}
	if BuildKey("go", 5, 1) == BuildKey("go", 6, 1) {
		t.Error("top_k must change the key")
	}
}

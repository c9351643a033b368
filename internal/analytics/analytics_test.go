package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e kafka.Event) error {
	return f.PublishBatch(ctx, []kafka.Event{e})
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (f *fakePublisher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, 4, time.Hour)
	c.Start(context.Background())
	for i := 0; i < 6; i++ {
		c.Track(RecommendationEvent{Type: EventRecommendation, Domain: "web", Returned: 1})
	}
	c.TrackIndex(IndexEvent{Type: EventIndexBuilt, Generation: 7})
	c.Close()

	if got := pub.total(); got != 7 {
		t.Fatalf("published %d events, want 7", got)
	}
	if len(pub.batches[0]) != 4 {
		t.Errorf("first batch size = %d, want 4", len(pub.batches[0]))
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1, 10, time.Hour)
	c.Track(RecommendationEvent{})
	c.Track(RecommendationEvent{})
	if len(c.eventCh) != 1 {
		t.Fatalf("buffered = %d, want 1", len(c.eventCh))
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(RecommendationEvent{Domain: "Data Science", Terms: []string{"python"}, Returned: 3, TopScore: 0.8, LatencyMs: 10})
	agg.Record(RecommendationEvent{Domain: "data science", Terms: []string{"python", "sql"}, Returned: 2, TopScore: 0.4, LatencyMs: 30, CacheHit: true})
	agg.Record(RecommendationEvent{Domain: "Pottery", Returned: 0, LatencyMs: 20})
	agg.RecordIndex(IndexEvent{Generation: 42})

	s := agg.Stats()
	if s.TotalRecommendations != 3 || s.TotalReturned != 5 {
		t.Errorf("totals = %d/%d", s.TotalRecommendations, s.TotalReturned)
	}
	if s.CacheHits != 1 || s.CacheMisses != 2 || s.ZeroResultCount != 1 {
		t.Errorf("hits=%d misses=%d zero=%d", s.CacheHits, s.CacheMisses, s.ZeroResultCount)
	}
	if s.P50LatencyMs != 20 || s.AvgLatencyMs != 20 {
		t.Errorf("p50=%d avg=%f", s.P50LatencyMs, s.AvgLatencyMs)
	}
	if s.AvgTopScore < 0.599 || s.AvgTopScore > 0.601 {
		t.Errorf("avg top score = %f", s.AvgTopScore)
	}
	if len(s.TopDomains) == 0 || s.TopDomains[0] != (TermCount{Term: "data science", Count: 2}) {
		t.Errorf("top domains = %+v", s.TopDomains)
	}
	if len(s.ZeroResultDomains) != 1 || s.ZeroResultDomains[0].Term != "pottery" {
		t.Errorf("zero-result domains = %+v", s.ZeroResultDomains)
	}
	if s.TopSkills[0] != (TermCount{Term: "python", Count: 2}) {
		t.Errorf("top skills = %+v", s.TopSkills)
	}
	if s.IndexBuilds != 1 || s.LastGeneration != 42 {
		t.Errorf("index builds=%d gen=%d", s.IndexBuilds, s.LastGeneration)
	}
}

func TestHandleEventDispatchesByType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	rec, _ := json.Marshal(RecommendationEvent{Type: EventRecommendation, Returned: 1})
	idx, _ := json.Marshal(IndexEvent{Type: EventIndexBuilt, Generation: 3})
	for _, msg := range [][]byte{rec, idx, []byte("not json"), []byte(`{"type":"other"}`)} {
		if err := handle(context.Background(), nil, msg); err != nil {
			t.Fatalf("handler returned %v", err)
		}
	}
	s := agg.Stats()
	if s.TotalRecommendations != 1 || s.IndexBuilds != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(RecommendationEvent{Returned: 2})
	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TotalRecommendations != 1 {
		t.Errorf("total = %d", got.TotalRecommendations)
	}
}

func TestStatsHandlerTopParam(t *testing.T) {
	agg := NewAggregator()
	for _, d := range []string{"web", "data", "design"} {
		agg.Record(RecommendationEvent{Domain: d, Returned: 1})
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	var got AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.TopDomains) != 2 {
		t.Errorf("top domains = %v, want 2 entries", got.TopDomains)
	}

	for _, bad := range []string{"0", "101", "x"} {
		rec := httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+bad, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("top=%s status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestLocalPublisherFeedsAggregator(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(NewLocalPublisher(agg), 8, 2, time.Hour)
	c.Start(context.Background())
	c.Track(RecommendationEvent{Type: EventRecommendation, Domain: "web", Returned: 2, TopScore: 0.5})
	c.Track(RecommendationEvent{Type: EventZeroResult, Domain: "art"})
	c.TrackIndex(IndexEvent{Type: EventIndexBuilt, Generation: 9})
	c.Close()

	s := agg.Stats()
	if s.TotalRecommendations != 2 || s.ZeroResultCount != 1 || s.LastGeneration != 9 {
		t.Errorf("stats = %+v", s)
	}
}

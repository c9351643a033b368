package rebuild

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/builder"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/internal/vectorizer"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/proto"
)

type countingBuilder struct {
	rebuilds atomic.Int32
	retrains atomic.Int32
	gen      atomic.Uint64
}

func (b *countingBuilder) Rebuild(context.Context) (*builder.Report, error) {
	b.rebuilds.Add(1)
	return &builder.Report{Generation: b.gen.Add(1), Documents: 3}, nil
}

func (b *countingBuilder) Retrain(context.Context) (*builder.Report, error) {
	b.retrains.Add(1)
	return &builder.Report{Generation: b.gen.Add(1), Documents: 3}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorkerDebouncesNotifications(t *testing.T) {
	b := &countingBuilder{}
	pub := &recordingPublisher{}
	w := NewWorker(b, pub, nil, config.RebuildConfig{Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 10; i++ {
		w.Notify(1)
	}
	waitFor(t, func() bool { return w.Builds() == 1 })
	time.Sleep(100 * time.Millisecond)
	if got := b.rebuilds.Load(); got != 1 {
		t.Errorf("rebuilds = %d, want 1", got)
	}
	if pub.count() != 1 {
		t.Fatalf("published %d events, want 1", pub.count())
	}
	msg, ok := pub.events[0].Value.(proto.IndexComplete)
	if !ok || msg.Generation != 1 || msg.Documents != 3 {
		t.Errorf("event = %+v", pub.events[0].Value)
	}
}

func TestWorkerRetrainOnChange(t *testing.T) {
	b := &countingBuilder{}
	w := NewWorker(b, nil, nil, config.RebuildConfig{RetrainOnChange: true})
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.retrains.Load() != 1 || b.rebuilds.Load() != 0 {
		t.Errorf("retrains=%d rebuilds=%d", b.retrains.Load(), b.rebuilds.Load())
	}
}

type slowBuilder struct{ countingBuilder }

func (b *slowBuilder) Rebuild(ctx context.Context) (*builder.Report, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWorkerTimeout(t *testing.T) {
	w := NewWorker(&slowBuilder{}, nil, nil, config.RebuildConfig{Timeout: 20 * time.Millisecond})
	if _, err := w.RunOnce(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestHandleChangeSchedulesRebuild(t *testing.T) {
	w := NewWorker(&countingBuilder{}, nil, nil, config.RebuildConfig{})
	handle := HandleChange(w)
	data, _ := json.Marshal(proto.InternshipsChanged{Action: proto.ActionUpsert, IDs: []int64{1, 2}})
	if err := handle(context.Background(), nil, data); err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), nil, []byte("garbage")); err != nil {
		t.Fatal("undecodable messages must be skipped")
	}
	if w.pending.Load() != 2 || len(w.trigger) != 1 {
		t.Errorf("pending=%d triggered=%d", w.pending.Load(), len(w.trigger))
	}
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.n.Add(1)
	return nil
}

func newBuiltEngine(t *testing.T, src *datasource.Static) (*builder.Builder, *search.Engine) {
	t.Helper()
	ctx := context.Background()
	names := search.Artifacts{Index: "i", IDs: "ids", Vectorizer: "v"}
	store := artifact.NewMemory()
	loader := vectorizer.NewLoader(store, src, names.Vectorizer, vectorizer.DefaultOptions(), true)
	b := builder.New(builder.Config{Artifacts: names, FetchAttempts: 1}, store, src, loader, nil)
	if _, err := b.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	engine := search.NewEngine(store, names)
	if err := engine.Ready(ctx); err != nil {
		t.Fatal(err)
	}
	return b, engine
}

func TestHandleIndexCompleteReloads(t *testing.T) {
	ctx := context.Background()
	b, engine := newBuiltEngine(t, datasource.NewStatic(
		datasource.Internship{ID: 1, RequiredSkills: "python sql", Active: true},
		datasource.Internship{ID: 2, RequiredSkills: "java", Active: true},
	))
	cache := &countingInvalidator{}
	handle := HandleIndexComplete(engine, cache)

	current, _ := json.Marshal(proto.IndexComplete{Generation: engine.Stats().Generation})
	if err := handle(ctx, nil, current); err != nil {
		t.Fatal(err)
	}
	if cache.n.Load() != 0 {
		t.Error("announcing the served generation must not reload")
	}

	report, err := b.Rebuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	next, _ := json.Marshal(proto.IndexComplete{Generation: report.Generation})
	if err := handle(ctx, nil, next); err != nil {
		t.Fatal(err)
	}
	if engine.Stats().Generation != report.Generation || cache.n.Load() != 1 {
		t.Errorf("generation=%d invalidations=%d", engine.Stats().Generation, cache.n.Load())
	}
}

func TestLocalAnnouncerReloadsInProcess(t *testing.T) {
	ctx := context.Background()
	src := datasource.NewStatic(
		datasource.Internship{ID: 1, RequiredSkills: "python sql", Active: true},
	)
	b, engine := newBuiltEngine(t, src)
	cache := &countingInvalidator{}
	w := NewWorker(b, NewLocalAnnouncer(HandleIndexComplete(engine, cache)), nil, config.RebuildConfig{})

	src.Upsert(ctx, []datasource.Internship{{ID: 2, RequiredSkills: "python java", Active: true}})
	report, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	st := engine.Stats()
	if st.Generation != report.Generation || st.Documents != 2 {
		t.Errorf("engine stats = %+v, want generation %d with 2 documents", st, report.Generation)
	}
	if cache.n.Load() != 1 {
		t.Errorf("invalidations = %d, want 1", cache.n.Load())
	}
}

func TestWorkerRebuildAnnouncesWithoutRetraining(t *testing.T) {
	b := &countingBuilder{}
	pub := &recordingPublisher{}
	w := NewWorker(b, pub, nil, config.RebuildConfig{RetrainOnChange: true})

	report, err := w.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.rebuilds.Load() != 1 || b.retrains.Load() != 0 {
		t.Errorf("retrains=%d rebuilds=%d, want a plain rebuild", b.retrains.Load(), b.rebuilds.Load())
	}
	if pub.count() != 1 {
		t.Fatalf("published %d events, want 1", pub.count())
	}
	msg, ok := pub.events[0].Value.(proto.IndexComplete)
	if !ok || msg.Generation != report.Generation {
		t.Errorf("event = %+v, want generation %d", pub.events[0].Value, report.Generation)
	}
}

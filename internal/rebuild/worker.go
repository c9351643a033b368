// Package rebuild keeps the persisted index in step with the internships
// table. The indexer's Worker turns internships.changed events into
// debounced rebuilds and announces each new generation on index.complete;
// API servers consume that topic to reload their search engine.
package rebuild

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/analytics"
	"github.com/Rajat083/Internship-Recommender/internal/builder"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/proto"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
)

// Builder is the part of builder.Builder the Worker drives.
type Builder interface {
	Rebuild(ctx context.Context) (*builder.Report, error)
	Retrain(ctx context.Context) (*builder.Report, error)
}

// Worker coalesces change notifications into rebuilds. After the first
// notification it waits for the debounce interval, absorbing further
// notifications, then rebuilds once.
type Worker struct {
	builder   Builder
	publisher kafka.Publisher
	collector *analytics.Collector
	cfg       config.RebuildConfig
	trigger   chan struct{}
	pending   atomic.Int64
	builds    atomic.Int64
	logger    *slog.Logger
}

// NewWorker creates a Worker. publisher and collector may be nil.
func NewWorker(b Builder, publisher kafka.Publisher, collector *analytics.Collector, cfg config.RebuildConfig) *Worker {
	return &Worker{
		builder:   b,
		publisher: publisher,
		collector: collector,
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
		logger:    slog.Default().With("component", "rebuild-worker"),
	}
}

// Notify records n changed internships and schedules a rebuild. It never
// blocks.
func (w *Worker) Notify(n int) {
	if n < 1 {
		n = 1
	}
	w.pending.Add(int64(n))
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Builds returns the number of successful rebuilds run by the worker.
func (w *Worker) Builds() int64 {
	return w.builds.Load()
}

// Run processes notifications until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("rebuild worker started", "debounce", w.cfg.Debounce, "retrain_on_change", w.cfg.RetrainOnChange)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
		}
		if w.cfg.Debounce > 0 {
			timer := time.NewTimer(w.cfg.Debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		select {
		case <-w.trigger:
		default:
		}
		changes := w.pending.Swap(0)
		if changes == 0 {
			continue
		}
		if _, err := w.RunOnce(ctx); err != nil {
			if errors.Is(err, apperrors.ErrRebuildInProgress) {
				w.logger.Info("rebuild already running, rescheduling", "changes", changes)
				w.Notify(int(changes))
				continue
			}
			w.logger.Error("rebuild failed", "changes", changes, "error", err)
		}
	}
}

// RunOnce rebuilds immediately, retraining first when the worker is
// configured to, and announces the new generation.
func (w *Worker) RunOnce(ctx context.Context) (*builder.Report, error) {
	return w.run(ctx, w.cfg.RetrainOnChange)
}

// Rebuild rebuilds with the stored vectorizer and announces the new
// generation. It serves explicit admin rebuilds, which never retrain.
func (w *Worker) Rebuild(ctx context.Context) (*builder.Report, error) {
	return w.run(ctx, false)
}

func (w *Worker) run(ctx context.Context, retrain bool) (*builder.Report, error) {
	var report *builder.Report
	err := resilience.WithTimeout(ctx, w.cfg.Timeout, "index-rebuild", func(ctx context.Context) error {
		var err error
		if retrain {
			report, err = w.builder.Retrain(ctx)
		} else {
			report, err = w.builder.Rebuild(ctx)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	w.builds.Add(1)
	w.announce(ctx, report)
	return report, nil
}

func (w *Worker) announce(ctx context.Context, r *builder.Report) {
	now := time.Now().UTC()
	if w.publisher != nil {
		err := w.publisher.Publish(ctx, kafka.Event{
			Key: strconv.FormatUint(r.Generation, 10),
			Value: proto.IndexComplete{
				Generation: r.Generation,
				Documents:  r.Documents,
				Dimension:  r.Dimension,
				Degenerate: r.Degenerate,
				DurationMs: r.Duration.Milliseconds(),
				BuiltAt:    now.Unix(),
			},
		})
		if err != nil {
			w.logger.Error("failed to publish index.complete", "generation", r.Generation, "error", err)
		}
	}
	if w.collector != nil {
		w.collector.TrackIndex(analytics.IndexEvent{
			Type:       analytics.EventIndexBuilt,
			Generation: r.Generation,
			Documents:  r.Documents,
			Degenerate: r.Degenerate,
			DurationMs: r.Duration.Milliseconds(),
			Timestamp:  now,
		})
	}
}

package rebuild

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/proto"
)

// HandleChange returns a Kafka MessageHandler that schedules a rebuild on
// the worker for every internships.changed event.
func HandleChange(w *Worker) kafka.MessageHandler {
	logger := slog.Default().With("component", "change-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[proto.InternshipsChanged](value)
		if err != nil {
			logger.Error("failed to decode change event", "error", err, "key", string(key))
			return nil
		}
		logger.Debug("internships changed",
			"action", event.Action,
			"ids", len(event.IDs),
			"source", event.Source,
		)
		w.Notify(len(event.IDs))
		return nil
	}
}

// Reloader is the part of search.Engine that follows new generations.
type Reloader interface {
	Reload(ctx context.Context) (*search.Snapshot, error)
	Loaded() bool
	Stats() proto.IndexStats
}

// Invalidator clears results computed against an older index.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleIndexComplete returns a Kafka MessageHandler that reloads engine
// when a generation other than the one it serves is announced, then
// invalidates cache. cache may be nil. A failed reload is returned so the
// consumer retries it; the artifacts may not be visible yet.
func HandleIndexComplete(engine Reloader, cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-complete-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[proto.IndexComplete](value)
		if err != nil {
			logger.Error("failed to decode index.complete event", "error", err, "key", string(key))
			return nil
		}
		if engine.Loaded() && engine.Stats().Generation == event.Generation {
			logger.Debug("generation already served", "generation", event.Generation)
			return nil
		}
		snap, err := engine.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading for generation %d: %w", event.Generation, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation failed", "error", err)
			}
		}
		logger.Info("engine reloaded", "announced_generation", event.Generation, "loaded_generation", snap.Generation)
		return nil
	}
}

// LocalAnnouncer delivers published events to a handler in the same
// process. It stands in for the index.complete topic when Kafka is off.
type LocalAnnouncer struct {
	handler kafka.MessageHandler
}

func NewLocalAnnouncer(handler kafka.MessageHandler) *LocalAnnouncer {
	return &LocalAnnouncer{handler: handler}
}

func (a *LocalAnnouncer) Publish(ctx context.Context, event kafka.Event) error {
	data, err := json.Marshal(event.Value)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return a.handler(ctx, []byte(event.Key), data)
}

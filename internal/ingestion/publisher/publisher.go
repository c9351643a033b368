// Package publisher writes validated internship rows to the data source
// and announces them on internships.changed so the indexer rebuilds.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/ingestion"
	"github.com/Rajat083/Internship-Recommender/internal/ingestion/validator"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/Rajat083/Internship-Recommender/pkg/proto"
)

// Writer is the write side of datasource.Store.
type Writer interface {
	Upsert(ctx context.Context, rows []datasource.Internship) (int, error)
}

// Notifier is told about changes in-process when no broker carries them.
type Notifier interface {
	Notify(n int)
}

// Publisher coordinates row persistence and change events.
type Publisher struct {
	store    Writer
	producer kafka.Publisher
	notifier Notifier
	source   string
	logger   *slog.Logger
}

// New creates a Publisher. producer and notifier may be nil; source names
// the caller in published events.
func New(store Writer, producer kafka.Publisher, notifier Notifier, source string) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		notifier: notifier,
		source:   source,
		logger:   slog.Default().With("component", "internship-publisher"),
	}
}

// Ingest validates rows, upserts the valid ones and announces their ids.
// Invalid rows are reported in the response and skipped. When several rows
// share an id the last one wins.
func (p *Publisher) Ingest(ctx context.Context, rows []datasource.Internship) (*ingestion.ImportResponse, error) {
	resp := &ingestion.ImportResponse{
		Received: len(rows),
		Rejected: []ingestion.Rejection{},
	}

	valid := make([]datasource.Internship, 0, len(rows))
	position := make(map[int64]int, len(rows))
	for i := range rows {
		row := rows[i]
		if err := validator.ValidateInternship(&row); err != nil {
			var ve *validator.ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			resp.Rejected = append(resp.Rejected, ingestion.Rejection{Row: i, ID: row.ID, Fields: ve.Fields})
			continue
		}
		if at, dup := position[row.ID]; dup {
			valid[at] = row
			continue
		}
		position[row.ID] = len(valid)
		valid = append(valid, row)
	}
	if len(valid) == 0 {
		return resp, nil
	}

	written, err := p.store.Upsert(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("upserting %d internships: %w", len(valid), err)
	}
	resp.Written = written

	ids := make([]int64, len(valid))
	for i, row := range valid {
		ids[i] = row.ID
	}
	resp.Published = p.announce(ctx, ids)
	p.logger.Info("internships imported",
		"received", resp.Received,
		"written", resp.Written,
		"rejected", len(resp.Rejected),
		"published", resp.Published,
	)
	return resp, nil
}

// announce reports the changed ids. A failed publish is logged and not
// returned.
func (p *Publisher) announce(ctx context.Context, ids []int64) bool {
	published := false
	if p.producer != nil {
		err := p.producer.Publish(ctx, kafka.Event{
			Key: strconv.FormatInt(ids[0], 10),
			Value: proto.InternshipsChanged{
				Action:     proto.ActionUpsert,
				IDs:        ids,
				Source:     p.source,
				OccurredAt: time.Now().UTC().Unix(),
			},
		})
		if err != nil {
			p.logger.Error("failed to publish internships.changed, index stays stale until the next rebuild",
				"ids", len(ids),
				"error", err,
			)
		} else {
			published = true
		}
	}
	if p.notifier != nil {
		p.notifier.Notify(len(ids))
		published = true
	}
	return published
}

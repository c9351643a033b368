// Package analytics collects recommendation events, publishes them to Kafka
// and aggregates them into service statistics.
package analytics

import "time"

type EventType string

const (
	EventRecommendation EventType = "recommendation"
	EventZeroResult     EventType = "zero_result"
	EventIndexBuilt     EventType = "index_built"
)

// RecommendationEvent describes one answered recommendation request.
type RecommendationEvent struct {
	Type      EventType `json:"type"`
	Domain    string    `json:"domain"`
	Terms     []string  `json:"terms"`
	TopK      int       `json:"top_k"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexEvent describes a completed index rebuild.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Degenerate int       `json:"degenerate"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// envelope reads only the type tag so the payload can be decoded into the
// right struct.
type envelope struct {
	Type EventType `json:"type"`
}

// Package proto defines the JSON messages exchanged between the recommender
// services over Kafka and the admin HTTP endpoints. The indexer and the API
// server share artifacts through the artifact store; these messages only
// announce that something changed.
package proto

// ---------- Kafka: internships.changed ----------

// Change actions carried by InternshipsChanged.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
	ActionBulk   = "bulk"
)

// InternshipsChanged tells the indexer that the internships table was
// modified. IDs may be empty for bulk loads.
type InternshipsChanged struct {
	Action     string  `json:"action"`
	IDs        []int64 `json:"ids,omitempty"`
	Source     string  `json:"source,omitempty"`
	OccurredAt int64   `json:"occurred_at"`
}

// ---------- Kafka: index.complete ----------

// IndexComplete is published after a rebuild has persisted a new artifact
// pair. Consumers reload their search engine when Generation changes.
type IndexComplete struct {
	Generation uint64 `json:"generation"`
	Documents  int    `json:"documents"`
	Dimension  int    `json:"dimension"`
	Degenerate int    `json:"degenerate"`
	DurationMs int64  `json:"duration_ms"`
	BuiltAt    int64  `json:"built_at"`
}

// ---------- HTTP: index administration ----------

// IndexStats describes the snapshot a search engine is serving.
type IndexStats struct {
	Loaded         bool   `json:"loaded"`
	Generation     uint64 `json:"generation"`
	Documents      int    `json:"documents"`
	Dimension      int    `json:"dimension"`
	VocabularySize int    `json:"vocabulary_size"`
	LoadedAt       string `json:"loaded_at,omitempty"`
}

// RebuildResponse reports the outcome of an explicit rebuild.
type RebuildResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Generation uint64 `json:"generation,omitempty"`
	Documents  int    `json:"documents,omitempty"`
	Degenerate int    `json:"degenerate,omitempty"`
}

// HealthCheckResponse is the body of lightweight service health endpoints.
type HealthCheckResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Message string `json:"message,omitempty"`
}

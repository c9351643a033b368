package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 24
	maxListLimit     = 500
)

// SnapshotReader is the read side of Store.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

// Handler serves persisted snapshots.
type Handler struct {
	store  SnapshotReader
	logger *slog.Logger
}

func NewHandler(store SnapshotReader) *Handler {
	return &Handler{
		store:  store,
		logger: slog.Default().With("component", "snapshot-handler"),
	}
}

// Latest handles GET /api/v1/analytics/snapshots/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("loading latest snapshot failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot store unavailable"})
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshots recorded yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// List handles GET /api/v1/analytics/snapshots?limit=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer in [1, " + strconv.Itoa(maxListLimit) + "]",
			})
			return
		}
		limit = n
	}
	snapshots, err := h.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot store unavailable"})
		return
	}
	if snapshots == nil {
		snapshots = []Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Rajat083/Internship-Recommender/internal/ingestion"
	"github.com/Rajat083/Internship-Recommender/internal/ingestion/publisher"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
	"github.com/Rajat083/Internship-Recommender/pkg/logger"
)

const maxImportBytes = 16 << 20

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the import route on mux behind guard, which may be nil.
func (h *Handler) Register(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	var route http.Handler = http.HandlerFunc(h.Import)
	if guard != nil {
		route = guard(route)
	}
	mux.Handle("POST /api/v1/internships", route)
}

// Import accepts a JSON array of internships or an ImportRequest. It
// answers 202 when at least one row was written and 400 when every row was
// rejected.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	rows, err := ingestion.Decode(http.MaxBytesReader(w, r.Body, maxImportBytes), ingestion.FormatJSON)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "import body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(rows) == 0 {
		h.writeError(w, http.StatusBadRequest, "no internships in request")
		return
	}

	resp, err := h.publisher.Ingest(ctx, rows)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("internship import failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "import failed")
		return
	}
	if resp.Written == 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "validation failed",
			"rejected": resp.Rejected,
		})
		return
	}
	log.Info("internships accepted",
		"written", resp.Written,
		"rejected", len(resp.Rejected),
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

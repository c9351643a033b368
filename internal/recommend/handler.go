package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/analytics"
	"github.com/Rajat083/Internship-Recommender/internal/builder"
	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/internal/textnorm"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
	"github.com/Rajat083/Internship-Recommender/pkg/logger"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	"github.com/Rajat083/Internship-Recommender/pkg/middleware"
	"github.com/Rajat083/Internship-Recommender/pkg/proto"
	"github.com/Rajat083/Internship-Recommender/pkg/tracing"
)

const maxBodyBytes = 1 << 20

// Engine is the part of search.Engine the Handler uses.
type Engine interface {
	Ready(ctx context.Context) error
	Reload(ctx context.Context) (*search.Snapshot, error)
	Stats() proto.IndexStats
}

// Rebuilder runs an explicit index rebuild. The server passes a
// rebuild.Worker so other instances hear about the new generation.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*builder.Report, error)
}

// Deps are the collaborators of a Handler. Cache, Rebuilder, Collector,
// Metrics and AdminGuard are optional. AdminGuard wraps the routes that
// change state.
type Deps struct {
	Engine     Engine
	Assembler  *Assembler
	Cache      *Cache
	Rebuilder  Rebuilder
	Collector  *analytics.Collector
	Metrics    *metrics.Metrics
	AdminGuard func(http.Handler) http.Handler
}

type Handler struct {
	deps    Deps
	cfg     config.RecommendConfig
	version string
	logger  *slog.Logger
}

func NewHandler(deps Deps, cfg config.RecommendConfig, version string) *Handler {
	return &Handler{
		deps:    deps,
		cfg:     cfg,
		version: version,
		logger:  slog.Default().With("component", "recommendation-handler"),
	}
}

// Register adds the handler's routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("POST /api/v1/recommendations", h.Recommend)
	mux.HandleFunc("GET /api/v1/recommendations/health", h.Health)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.Handle("POST /api/v1/index/rebuild", h.admin(h.Rebuild))
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", h.admin(h.CacheInvalidate))
}

func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	if h.deps.AdminGuard == nil {
		return fn
	}
	return h.deps.AdminGuard(fn)
}

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "recommend", middleware.GetRequestID(r))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	topK := h.cfg.DefaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.countOutcome(span, metrics.OutcomeInvalid)
			h.writeError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		topK = parsed
	}

	var details StudentDetails
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&details); err != nil {
		h.countOutcome(span, metrics.OutcomeInvalid)
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	q, err := Validate(details, topK, h.cfg.MaxTopK)
	if err != nil {
		h.countOutcome(span, metrics.OutcomeInvalid)
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q.StudentID = NewStudentID()

	if err := h.deps.Engine.Ready(ctx); err != nil {
		h.countOutcome(span, metrics.OutcomeNotLoaded)
		span.SetError(err)
		log.Warn("recommendation index not ready", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	text := q.Text()
	var recs []Recommendation
	cacheHit := false
	compute := func() ([]Recommendation, error) {
		return h.deps.Assembler.RecommendByText(ctx, text, q.TopK)
	}
	if h.deps.Cache != nil {
		recs, cacheHit, err = h.deps.Cache.GetOrCompute(ctx, text, q.TopK, h.deps.Engine.Stats().Generation, compute)
	} else {
		recs, err = compute()
	}
	if err != nil {
		h.countOutcome(span, metrics.OutcomeError)
		span.SetError(err)
		log.Error("recommendation failed", "student_id", q.StudentID, "error", err)
		status := apperrors.HTTPStatusCode(err)
		msg := "recommendation failed"
		if status != http.StatusInternalServerError {
			msg = err.Error()
		}
		h.writeError(w, status, msg)
		return
	}

	resp := NewStudentRecommendation(q, recs)
	latency := time.Since(start)
	span.SetAttr("returned", len(recs))
	span.SetAttr("cache_hit", cacheHit)

	switch {
	case cacheHit:
		h.countOutcome(span, metrics.OutcomeCacheHit)
	case len(recs) == 0:
		h.countOutcome(span, metrics.OutcomeEmpty)
	default:
		h.countOutcome(span, metrics.OutcomeOK)
	}
	log.Info("recommendations served",
		"student_id", q.StudentID,
		"domain", q.Domain,
		"top_k", q.TopK,
		"returned", len(recs),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(r, q, recs, cacheHit, latency)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) track(r *http.Request, q Query, recs []Recommendation, cacheHit bool, latency time.Duration) {
	if h.deps.Collector == nil {
		return
	}
	event := analytics.RecommendationEvent{
		Type:      analytics.EventRecommendation,
		Domain:    q.Domain,
		Terms:     textnorm.Tokenize(textnorm.Normalize(textnorm.QueryText("", q.Skills))),
		TopK:      q.TopK,
		Returned:  len(recs),
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if len(recs) == 0 {
		event.Type = analytics.EventZeroResult
	} else {
		event.TopScore = recs[0].SimilarityScore
	}
	h.deps.Collector.Track(event)
}

func (h *Handler) countOutcome(span *tracing.Span, outcome string) {
	span.SetAttr("outcome", outcome)
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecommendationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, proto.HealthCheckResponse{Status: "healthy", Service: "recommendation"})
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"name":        "Internship Recommender",
		"version":     h.version,
		"description": "Ranks internships against a student's skills and domain using TF-IDF similarity search",
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.deps.Engine.Stats())
}

// Rebuild rebuilds the index from the data source, swaps it into the engine
// unless the announcement already did, and clears the cache.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.deps.Rebuilder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "index rebuilds are disabled on this instance")
		return
	}
	ctx := r.Context()
	log := logger.FromContext(ctx)
	report, err := h.deps.Rebuilder.Rebuild(ctx)
	if err != nil {
		log.Error("index rebuild failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), proto.RebuildResponse{Success: false, Message: err.Error()})
		return
	}
	if h.deps.Engine.Stats().Generation == report.Generation {
		log.Debug("rebuilt generation already loaded", "generation", report.Generation)
	} else if _, err := h.deps.Engine.Reload(ctx); err != nil {
		log.Error("reload after rebuild failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), proto.RebuildResponse{
			Success:    false,
			Message:    fmt.Sprintf("index rebuilt but not loaded: %v", err),
			Generation: report.Generation,
		})
		return
	}
	if h.deps.Cache != nil {
		if err := h.deps.Cache.Invalidate(ctx); err != nil {
			log.Warn("cache invalidation after rebuild failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, proto.RebuildResponse{
		Success:    true,
		Message:    "index rebuilt",
		Generation: report.Generation,
		Documents:  report.Documents,
		Degenerate: report.Degenerate,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.deps.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
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

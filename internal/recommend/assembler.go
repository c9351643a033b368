package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/search"
	"github.com/Rajat083/Internship-Recommender/internal/textnorm"
	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
	"github.com/Rajat083/Internship-Recommender/pkg/tracing"
)

// Searcher is the part of search.Engine the Assembler uses.
type Searcher interface {
	SearchWithScores(ctx context.Context, text string, k int) ([]search.Scored, error)
}

// Assembler maps search hits to ranked, hydrated recommendations.
type Assembler struct {
	searcher Searcher
	details  datasource.Source
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAssembler creates an Assembler. m may be nil.
func NewAssembler(searcher Searcher, details datasource.Source, m *metrics.Metrics) *Assembler {
	return &Assembler{
		searcher: searcher,
		details:  details,
		metrics:  m,
		logger:   slog.Default().With("component", "recommendation-assembler"),
	}
}

// Assemble answers a validated query for a student.
func (a *Assembler) Assemble(ctx context.Context, q Query) (*StudentRecommendation, error) {
	recs, err := a.RecommendByText(ctx, q.Text(), q.TopK)
	if err != nil {
		return nil, err
	}
	return NewStudentRecommendation(q, recs), nil
}

// NewStudentRecommendation wraps recs in the response for q.
func NewStudentRecommendation(q Query, recs []Recommendation) *StudentRecommendation {
	return &StudentRecommendation{
		StudentID:            q.StudentID,
		StudentName:          q.Name,
		StudentSkills:        q.Skills,
		Recommendations:      recs,
		TotalRecommendations: len(recs),
	}
}

// RecommendByText returns up to topK recommendations for free text, best
// first with ranks starting at 1. Search hits whose internship is no longer
// in the store are dropped. No hits is an empty list, not an error.
func (a *Assembler) RecommendByText(ctx context.Context, text string, topK int) ([]Recommendation, error) {
	searchCtx, span := tracing.StartChildSpan(ctx, "recommend.search")
	scored, err := a.searcher.SearchWithScores(searchCtx, text, topK)
	span.SetAttr("hits", len(scored))
	span.SetError(err)
	span.End()
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return []Recommendation{}, nil
	}

	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
	}
	_, hydrate := tracing.StartChildSpan(ctx, "recommend.hydrate")
	rows, err := a.details.FetchByIDs(ctx, ids)
	hydrate.SetAttr("rows", len(rows))
	hydrate.SetError(err)
	hydrate.End()
	if err != nil {
		return nil, fmt.Errorf("fetching internship details: %w", err)
	}
	byID := make(map[int64]datasource.Internship, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	type candidate struct {
		row   datasource.Internship
		score float64
	}
	candidates := make([]candidate, 0, len(scored))
	for _, s := range scored {
		row, ok := byID[s.ID]
		if !ok {
			a.logger.Warn("search hit missing from internship store", "internship_id", s.ID)
			continue
		}
		candidates = append(candidates, candidate{row: row, score: s.Score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	recs := make([]Recommendation, len(candidates))
	for i, c := range candidates {
		recs[i] = Recommendation{
			Rank:            i + 1,
			InternshipID:    strconv.FormatInt(c.row.ID, 10),
			InternshipTitle: c.row.Title,
			Company:         c.row.Company,
			SimilarityScore: roundScore(c.score),
			RequiredSkills:  textnorm.SplitSkills(c.row.RequiredSkills),
			Stipend:         c.row.Stipend,
			Domain:          c.row.Domain,
		}
	}
	if a.metrics != nil {
		a.metrics.ResultsCount.Observe(float64(len(recs)))
	}
	return recs, nil
}

func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}

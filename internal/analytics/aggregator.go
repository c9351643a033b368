package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalRecommendations int64       `json:"total_recommendations"`
	TotalReturned        int64       `json:"total_returned"`
	IndexBuilds          int64       `json:"index_builds"`
	LastGeneration       uint64      `json:"last_generation"`
	CacheHits            int64       `json:"cache_hits"`
	CacheMisses          int64       `json:"cache_misses"`
	ZeroResultCount      int64       `json:"zero_result_count"`
	AvgLatencyMs         float64     `json:"avg_latency_ms"`
	P50LatencyMs         int64       `json:"p50_latency_ms"`
	P95LatencyMs         int64       `json:"p95_latency_ms"`
	P99LatencyMs         int64       `json:"p99_latency_ms"`
	AvgTopScore          float64     `json:"avg_top_score"`
	TopDomains           []TermCount `json:"top_domains"`
	TopSkills            []TermCount `json:"top_skills"`
	ZeroResultDomains    []TermCount `json:"zero_result_domains"`
	RequestsPerMinute    float64     `json:"requests_per_minute"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                   sync.RWMutex
	totalRecommendations atomic.Int64
	totalReturned        atomic.Int64
	indexBuilds          atomic.Int64
	lastGeneration       atomic.Uint64
	cacheHits            atomic.Int64
	cacheMisses          atomic.Int64
	zeroResults          atomic.Int64
	latencies            []int64
	topScoreSum          float64
	scored               int64
	domainCounts         map[string]int64
	skillCounts          map[string]int64
	zeroResultDomains    map[string]int64
	startTime            time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		domainCounts:      make(map[string]int64),
		skillCounts:       make(map[string]int64),
		zeroResultDomains: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes analytics messages from Kafka into agg. Undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var env envelope
		if err := json.Unmarshal(value, &env); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventIndexBuilt:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.RecordIndex(event)
		case EventRecommendation, EventZeroResult:
			event, err := kafka.DecodeJSON[RecommendationEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode recommendation event", "error", err)
				return nil
			}
			agg.Record(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

// Record adds a recommendation event to the running totals.
func (a *Aggregator) Record(event RecommendationEvent) {
	a.totalRecommendations.Add(1)
	a.totalReturned.Add(int64(event.Returned))
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Returned == 0 {
		a.zeroResults.Add(1)
	}

	domain := strings.ToLower(strings.TrimSpace(event.Domain))
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	if event.Returned > 0 {
		a.topScoreSum += event.TopScore
		a.scored++
	}
	if domain != "" {
		a.domainCounts[domain]++
		if event.Returned == 0 {
			a.zeroResultDomains[domain]++
		}
	}
	for _, t := range event.Terms {
		a.skillCounts[t]++
	}
}

// RecordIndex counts a completed rebuild.
func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.indexBuilds.Add(1)
	a.lastGeneration.Store(event.Generation)
}

// DefaultTopN is how many domains and skills Stats ranks.
const DefaultTopN = 10

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTopN)
}

// StatsTop is Stats with the ranked term lists cut to n entries.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRecommendations: a.totalRecommendations.Load(),
		TotalReturned:        a.totalReturned.Load(),
		IndexBuilds:          a.indexBuilds.Load(),
		LastGeneration:       a.lastGeneration.Load(),
		CacheHits:            a.cacheHits.Load(),
		CacheMisses:          a.cacheMisses.Load(),
		ZeroResultCount:      a.zeroResults.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if a.scored > 0 {
		stats.AvgTopScore = a.topScoreSum / float64(a.scored)
	}
	stats.TopDomains = topN(a.domainCounts, n)
	stats.TopSkills = topN(a.skillCounts, n)
	stats.ZeroResultDomains = topN(a.zeroResultDomains, n)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRecommendations) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

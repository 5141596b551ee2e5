package analytics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	maxLatencySamples = 10000
	topQueriesLimit   = 10
)

// Stats is a point-in-time summary of recorded queries.
type Stats struct {
	TotalQueries      int64        `json:"total_queries"`
	CacheHits         int64        `json:"cache_hits"`
	ZeroScoreQueries  int64        `json:"zero_score_queries"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopZeroScoreTerms []QueryCount `json:"top_zero_score_queries"`
}

// QueryCount pairs a normalised query with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator accumulates query totals in memory. Latencies are kept in a
// ring of the most recent samples.
type Aggregator struct {
	mu          sync.Mutex
	total       int64
	cacheHits   int64
	zeroScore   int64
	latencies   []int64
	next        int
	queries     map[string]int64
	zeroQueries map[string]int64
	start       time.Time
	now         func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		start:       time.Now(),
		now:         time.Now,
	}
}

// Record adds one query event to the totals.
func (a *Aggregator) Record(event QueryEvent) {
	key := normalize(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if event.CacheHit {
		a.cacheHits++
	}
	if event.ZeroScore() {
		a.zeroScore++
		a.zeroQueries[key]++
	}
	a.queries[key]++
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

// Stats summarises everything recorded so far.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		TotalQueries:      a.total,
		CacheHits:         a.cacheHits,
		ZeroScoreQueries:  a.zeroScore,
		TopQueries:        topCounts(a.queries, topQueriesLimit),
		TopZeroScoreTerms: topCounts(a.zeroQueries, topQueriesLimit),
	}
	if minutes := a.now().Sub(a.start).Minutes(); minutes > 0 {
		s.QueriesPerMinute = float64(a.total) / minutes
	}
	if len(a.latencies) > 0 {
		sorted := append([]int64(nil), a.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		s.AvgLatencyMs = float64(sum) / float64(len(sorted))
		s.P50LatencyMs = percentile(sorted, 50)
		s.P95LatencyMs = percentile(sorted, 95)
		s.P99LatencyMs = percentile(sorted, 99)
	}
	return s
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []int64, p int) int64 {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func topCounts(counts map[string]int64, limit int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

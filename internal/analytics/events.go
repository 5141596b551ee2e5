package analytics

import "time"

// QueryEvent describes one served recommendation request.
type QueryEvent struct {
	Query      string    `json:"query"`
	TopN       int       `json:"top_n"`
	Returned   int       `json:"returned"`
	TopScore   float64   `json:"top_score"`
	Generation uint64    `json:"generation"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ZeroScore reports whether results were returned but none matched the
// query. A request for zero results is not a zero-score query.
func (e QueryEvent) ZeroScore() bool {
	return e.Returned > 0 && e.TopScore == 0
}

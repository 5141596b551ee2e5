// Package handler exposes the recommender over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/metrics"
)

// Recommender is the engine surface the handlers need.
type Recommender interface {
	Recommend(ctx context.Context, text string, topN int) (*engine.Recommendation, error)
	Rebuild(ctx context.Context, trigger string) (engine.IndexStats, error)
	Stats() (engine.IndexStats, bool)
	Generation() uint64
}

// Handler serves the recommendation API. The cache, collector, aggregator
// and metrics are optional.
type Handler struct {
	engine      Recommender
	cache       *cache.QueryCache
	collector   *analytics.Collector
	aggregator  *analytics.Aggregator
	metrics     *metrics.Metrics
	admin       func(http.Handler) http.Handler
	defaultTopN int
	maxTopN     int
	logger      *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithCollector(c *analytics.Collector) Option {
	return func(h *Handler) { h.collector = c }
}

func WithAggregator(a *analytics.Aggregator) Option {
	return func(h *Handler) { h.aggregator = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAdminMiddleware wraps the routes that mutate server state.
func WithAdminMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.admin = mw }
}

func New(eng Recommender, cfg config.RecommenderConfig, opts ...Option) *Handler {
	h := &Handler{
		engine:      eng,
		defaultTopN: cfg.DefaultTopN,
		maxTopN:     cfg.MaxTopN,
		logger:      logger.WithComponent("recommend-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/recommend", h.Recommend)
	mux.Handle("POST /api/v1/index/rebuild", h.adminRoute(h.Rebuild))
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", h.adminRoute(h.CacheInvalidate))
	mux.HandleFunc("GET /api/v1/analytics/stats", h.AnalyticsStats)
}

func (h *Handler) adminRoute(fn http.HandlerFunc) http.Handler {
	if h.admin == nil {
		return fn
	}
	return h.admin(fn)
}

// Recommend handles GET /api/v1/recommend?q=...&n=....
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	topN, err := h.parseTopN(r.URL.Query().Get("n"))
	if err != nil {
		h.countInvalid()
		h.writeError(w, err)
		return
	}

	var rec *engine.Recommendation
	cacheHit := false
	compute := func() (*engine.Recommendation, error) {
		return h.engine.Recommend(ctx, query, topN)
	}
	if h.cache != nil {
		rec, cacheHit, err = h.cache.GetOrCompute(ctx, h.engine.Generation(), query, topN, compute)
	} else {
		rec, err = compute()
	}
	if err != nil {
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			log.Error("recommendation failed", "query", query, "error", err)
		}
		h.writeError(w, err)
		return
	}
	if rec.Query != query {
		// shared with other callers whose query normalised to the same key
		shared := *rec
		shared.Query = query
		rec = &shared
	}

	latency := time.Since(start)
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.QueryLatency.WithLabelValues(status).Observe(latency.Seconds())
	}
	h.track(ctx, rec, cacheHit, latency)
	log.Info("recommendation served",
		"query", query,
		"top_n", topN,
		"returned", len(rec.Results),
		"generation", rec.Generation,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, rec)
}

// parseTopN applies the default for an absent n and caps it at maxTopN.
func (h *Handler) parseTopN(raw string) (int, error) {
	if raw == "" {
		return h.defaultTopN, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, http.StatusBadRequest, "n must be an integer, got %q", raw)
	}
	if n < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, http.StatusBadRequest, "n must be non-negative, got %d", n)
	}
	if n > h.maxTopN {
		n = h.maxTopN
	}
	return n, nil
}

func (h *Handler) countInvalid() {
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues("invalid").Inc()
	}
}

func (h *Handler) track(ctx context.Context, rec *engine.Recommendation, cacheHit bool, latency time.Duration) {
	if h.collector == nil && h.aggregator == nil {
		return
	}
	event := analytics.QueryEvent{
		Query:      rec.Query,
		TopN:       rec.TopN,
		Returned:   len(rec.Results),
		Generation: rec.Generation,
		CacheHit:   cacheHit,
		LatencyMs:  latency.Milliseconds(),
		RequestID:  logger.RequestID(ctx),
		Timestamp:  time.Now().UTC(),
	}
	if len(rec.Results) > 0 {
		event.TopScore = rec.Results[0].Score
	}
	if h.collector != nil {
		h.collector.Track(event)
	}
	if h.aggregator != nil {
		h.aggregator.Record(event)
	}
}

// Rebuild handles POST /api/v1/index/rebuild.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Rebuild(r.Context(), engine.TriggerManual)
	if err != nil {
		logger.FromContext(r.Context()).Error("manual rebuild failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.engine.Stats()
	if !ok {
		h.writeError(w, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "index has not been built yet"))
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) AnalyticsStats(w http.ResponseWriter, r *http.Request) {
	if h.aggregator == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError renders err with its mapped status. Only AppError messages
// reach the client; anything else is reported as an internal error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

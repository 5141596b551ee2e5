// Package engine owns the serving recommender index. It loads corpus
// snapshots from a catalog source, builds a fresh index from each one and
// swaps it in atomically, so queries never observe a half-built index.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/tracing"
	"github.com/google/uuid"
)

// Rebuild triggers, recorded on metrics and index-built events.
const (
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerKafka    = "kafka"
)

// Item is one entry of a Recommendation.
type Item struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Recommendation is the answer to one query against one index generation.
type Recommendation struct {
	Query      string `json:"query"`
	TopN       int    `json:"top_n"`
	Generation uint64 `json:"generation"`
	Results    []Item `json:"results"`
}

// IndexStats describes the serving index.
type IndexStats struct {
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Vocabulary int       `json:"vocabulary"`
	Trigger    string    `json:"trigger"`
	BuildMs    int64     `json:"build_ms"`
	BuiltAt    time.Time `json:"built_at"`
}

// IndexBuiltEvent is published after every successful rebuild.
type IndexBuiltEvent struct {
	IndexStats
	TraceID string `json:"trace_id"`
}

// CorpusUpdatedEvent is the payload expected on the corpus-updated topic.
// Every field is informational; any message triggers a rebuild.
type CorpusUpdatedEvent struct {
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Publisher sends events to a message broker. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type snapshot struct {
	index *recommender.Index
	stats IndexStats
}

// Engine serves queries from the current index and rebuilds it on demand.
type Engine struct {
	source    catalog.Source
	cfg       config.RecommenderConfig
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	current   atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher publishes an IndexBuiltEvent after each rebuild.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics records query and build metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine with no index. Call Rebuild before serving.
func New(source catalog.Source, cfg config.RecommenderConfig, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		cfg:    cfg,
		logger: logger.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild loads a fresh corpus snapshot, builds an index from it and makes
// it the serving index. Concurrent calls are serialised. On failure the
// previous index keeps serving.
func (e *Engine) Rebuild(ctx context.Context, trigger string) (IndexStats, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx, span := tracing.StartSpan(ctx, "index.rebuild", traceID)
	span.SetAttr("trigger", trigger)
	defer func() {
		span.End()
		span.Log(e.logger)
	}()

	docs, err := e.load(ctx)
	if err != nil {
		e.recordBuild("failed", trigger, start)
		e.logger.Error("corpus load failed", "trigger", trigger, "trace_id", traceID, "error", err)
		if errors.Is(err, apperrors.ErrInvalidDocument) {
			return IndexStats{}, apperrors.Newf(apperrors.ErrInvalidDocument, http.StatusUnprocessableEntity, "corpus rejected: %v", err)
		}
		return IndexStats{}, apperrors.Newf(apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable, "loading corpus: %v", err)
	}

	buildCtx, buildSpan := tracing.StartChildSpan(ctx, "index.build")
	idx, err := recommender.Build(buildCtx, docs,
		recommender.WithWorkers(e.cfg.BuildWorkers),
		recommender.WithLogger(e.logger),
	)
	buildSpan.SetAttr("documents", len(docs))
	buildSpan.End()
	if err != nil {
		e.recordBuild("failed", trigger, start)
		return IndexStats{}, fmt.Errorf("building index: %w", err)
	}

	var generation uint64 = 1
	if prev := e.current.Load(); prev != nil {
		generation = prev.stats.Generation + 1
	}
	stats := IndexStats{
		Generation: generation,
		Documents:  idx.Len(),
		Vocabulary: idx.VocabularySize(),
		Trigger:    trigger,
		BuildMs:    time.Since(start).Milliseconds(),
		BuiltAt:    time.Now().UTC(),
	}
	e.current.Store(&snapshot{index: idx, stats: stats})
	e.recordBuild("ok", trigger, start)
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(stats.Documents))
		e.metrics.IndexVocabulary.Set(float64(stats.Vocabulary))
		e.metrics.IndexGeneration.Set(float64(stats.Generation))
	}

	e.logger.Info("index rebuilt",
		"generation", stats.Generation,
		"documents", stats.Documents,
		"vocabulary", stats.Vocabulary,
		"trigger", trigger,
		"build_ms", stats.BuildMs,
	)

	if e.publisher != nil {
		event := kafka.Event{
			Key:   fmt.Sprintf("generation-%d", stats.Generation),
			Value: IndexBuiltEvent{IndexStats: stats, TraceID: traceID},
		}
		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Warn("index-built event not published", "generation", stats.Generation, "error", err)
		}
	}
	return stats, nil
}

func (e *Engine) load(ctx context.Context) ([]catalog.Document, error) {
	ctx, span := tracing.StartChildSpan(ctx, "corpus.load")
	defer span.End()

	var docs []catalog.Document
	attempts := 0
	err := resilience.Retry(ctx, "corpus load", resilience.RetryConfig{MaxAttempts: e.cfg.LoadAttempts}, func(ctx context.Context) error {
		attempts++
		var loaded []catalog.Document
		err := resilience.WithTimeout(ctx, e.cfg.LoadTimeout, "corpus load", func(ctx context.Context) error {
			var err error
			loaded, err = e.source.Load(ctx)
			if errors.Is(err, apperrors.ErrInvalidDocument) {
				return resilience.Permanent(err)
			}
			return err
		})
		if err != nil {
			return err
		}
		docs = loaded
		return nil
	})
	span.SetAttr("attempts", attempts)
	span.SetAttr("documents", len(docs))
	return docs, err
}

func (e *Engine) recordBuild(status, trigger string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status, trigger).Inc()
	if status == "ok" {
		e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	}
}

// Recommend answers text with up to topN items from the serving index.
// It fails with ErrIndexNotReady before the first successful rebuild and
// with ErrInvalidArgument for a negative topN.
func (e *Engine) Recommend(ctx context.Context, text string, topN int) (*Recommendation, error) {
	snap := e.current.Load()
	if snap == nil {
		e.countQuery("error")
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "index has not been built yet")
	}
	results, err := snap.index.Query(text, topN)
	if err != nil {
		e.countQuery("invalid")
		return nil, err
	}

	rec := &Recommendation{
		Query:      text,
		TopN:       topN,
		Generation: snap.stats.Generation,
		Results:    make([]Item, len(results)),
	}
	for i, r := range results {
		rec.Results[i] = Item{ID: r.Document.ID, Title: r.Document.Title, Score: r.Score}
	}

	outcome := "ok"
	if len(results) > 0 && results[0].Score == 0 {
		outcome = "zero_score"
	}
	e.countQuery(outcome)
	if e.metrics != nil {
		e.metrics.QueryResultsCount.Observe(float64(len(results)))
	}
	logger.FromContext(ctx).Debug("recommendation computed",
		"generation", rec.Generation,
		"top_n", topN,
		"returned", len(rec.Results),
	)
	return rec, nil
}

func (e *Engine) countQuery(outcome string) {
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	}
}

// Stats describes the serving index; ok is false before the first build.
func (e *Engine) Stats() (stats IndexStats, ok bool) {
	snap := e.current.Load()
	if snap == nil {
		return IndexStats{}, false
	}
	return snap.stats, true
}

// Generation returns the serving index generation, 0 before the first build.
func (e *Engine) Generation() uint64 {
	stats, _ := e.Stats()
	return stats.Generation
}

// Ready reports whether an index is serving.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// RunRebuildLoop rebuilds the index every cfg.RebuildInterval until ctx is
// done. A zero interval disables periodic rebuilds and returns immediately.
func (e *Engine) RunRebuildLoop(ctx context.Context) {
	if e.cfg.RebuildInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.RebuildInterval)
	defer ticker.Stop()
	e.logger.Info("periodic rebuild enabled", "interval", e.cfg.RebuildInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Rebuild(ctx, TriggerSchedule); err != nil && ctx.Err() == nil {
				e.logger.Error("scheduled rebuild failed", "error", err)
			}
		}
	}
}

// HandleCorpusUpdated returns a Kafka message handler that rebuilds the
// index for every corpus-updated message.
func (e *Engine) HandleCorpusUpdated() kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[CorpusUpdatedEvent](value)
		if err != nil {
			e.logger.Warn("undecodable corpus-updated message, rebuilding anyway", "key", string(key), "error", err)
		} else {
			e.logger.Info("corpus updated", "source", event.Source, "reason", event.Reason)
		}
		_, err = e.Rebuild(ctx, TriggerKafka)
		return err
	}
}

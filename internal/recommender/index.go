// Package recommender builds an immutable TF-IDF index over a corpus of
// catalog documents and answers free-text queries with the most similar
// documents by cosine similarity.
//
// Build tokenises every document, computes the corpus IDF table, then
// vectorises every document against it. Tokenising and vectorising run in
// parallel across documents; the IDF pass sits between them as a barrier.
// A built Index is never modified, so any number of goroutines may call
// Query on it concurrently.
package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/recommender/ranker"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/recommender/stats"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/recommender/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/recommender/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result is one recommended document and its similarity to the query, in
// [0, 1].
type Result struct {
	Document catalog.Document
	Score    float64
}

// Index holds the IDF table and one document vector per corpus position.
type Index struct {
	docs    []catalog.Document
	idf     *stats.Table
	vectors []vector.Sparse
}

type options struct {
	workers int
	logger  *slog.Logger
}

// Option configures Build.
type Option func(*options)

// WithWorkers bounds the number of documents processed concurrently.
// Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger Build reports progress to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Build indexes docs. An empty corpus yields an empty Index, not an error;
// the only error is ctx being cancelled, in which case no Index is returned.
func Build(ctx context.Context, docs []catalog.Document, opts ...Option) (*Index, error) {
	o := options{logger: slog.Default().With("component", "recommender")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	docs = append([]catalog.Document(nil), docs...)

	tokens := make([][]string, len(docs))
	if err := forEach(ctx, len(docs), o.workers, func(i int) {
		tokens[i] = tokenizer.Tokenize(docs[i].Text)
	}); err != nil {
		return nil, fmt.Errorf("tokenizing corpus: %w", err)
	}

	idf := stats.Build(tokens)

	vectors := make([]vector.Sparse, len(docs))
	if err := forEach(ctx, len(docs), o.workers, func(i int) {
		vectors[i] = vector.New(tokens[i], idf)
	}); err != nil {
		return nil, fmt.Errorf("vectorizing corpus: %w", err)
	}

	o.logger.Debug("index built",
		"documents", len(docs),
		"vocabulary", idf.Len(),
		"workers", o.workers,
		"duration", time.Since(start),
	)
	return &Index{
		docs:    docs,
		idf:     idf,
		vectors: vectors,
	}, nil
}

// forEach runs fn for every index in [0, n) on at most workers goroutines.
func forEach(ctx context.Context, n, workers int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Query scores text against every document and returns the topN most
// similar, best first. Equal scores are ordered by corpus position
// descending. An empty or entirely unknown query scores 0 against every
// document and still returns min(topN, Len()) results. A negative topN is
// rejected with ErrInvalidArgument.
func (ix *Index) Query(text string, topN int) ([]Result, error) {
	if topN < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, http.StatusBadRequest,
			"top_n must be non-negative, got %d", topN)
	}
	if topN == 0 || len(ix.vectors) == 0 {
		return []Result{}, nil
	}
	q := vector.New(tokenizer.Tokenize(text), ix.idf)
	scores := make([]ranker.Scored, len(ix.vectors))
	for i, v := range ix.vectors {
		scores[i] = ranker.Scored{Position: i, Score: vector.Similarity(q, v)}
	}
	ranked := ranker.Rank(scores, topN)
	results := make([]Result, len(ranked))
	for i, s := range ranked {
		results[i] = Result{Document: ix.docs[s.Position], Score: s.Score}
	}
	return results, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// VocabularySize returns the number of distinct tokens in the corpus.
func (ix *Index) VocabularySize() int {
	return ix.idf.Len()
}

// Documents returns a copy of the corpus in index order.
func (ix *Index) Documents() []catalog.Document {
	return append([]catalog.Document(nil), ix.docs...)
}

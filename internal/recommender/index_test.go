package recommender

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/errors"
)

const tolerance = 1e-9

func build(t *testing.T, texts ...string) *Index {
	t.Helper()
	docs := make([]catalog.Document, len(texts))
	for i, text := range texts {
		docs[i] = catalog.Document{ID: fmt.Sprintf("doc%d", i), Title: fmt.Sprintf("Doc %d", i), Text: text}
	}
	ix, err := Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return ix
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func TestQueryRanksClosestFirst(t *testing.T) {
	ix := build(t, "python code basics", "java code basics")
	results, err := ix.Query("python basics", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Document.ID != "doc0" {
		t.Errorf("first result = %s, want doc0", results[0].Document.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("doc0 score %v should exceed doc1 score %v", results[0].Score, results[1].Score)
	}
}

func TestQuerySingleCharacterDocument(t *testing.T) {
	ix := build(t, "a")
	if ix.VocabularySize() != 0 {
		t.Errorf("VocabularySize() = %d, want 0", ix.VocabularySize())
	}
	if !ix.vectors[0].IsZero() {
		t.Error("vector of a document without tokens should be zero")
	}
	for _, q := range []string{"a", "anything at all", ""} {
		results, err := ix.Query(q, 5)
		if err != nil {
			t.Fatalf("Query(%q) error = %v", q, err)
		}
		if len(results) != 1 || results[0].Score != 0 {
			t.Errorf("Query(%q) = %+v, want one result scoring 0", q, results)
		}
	}
}

func TestQueryEmptyCorpus(t *testing.T) {
	for _, docs := range [][]catalog.Document{nil, {}} {
		ix, err := Build(context.Background(), docs)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if ix.Len() != 0 || ix.VocabularySize() != 0 {
			t.Errorf("Len=%d VocabularySize=%d, want 0 and 0", ix.Len(), ix.VocabularySize())
		}
		results, err := ix.Query("anything", 5)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if results == nil || len(results) != 0 {
			t.Errorf("Query() = %#v, want empty list", results)
		}
	}
}

func TestQueryZeroTopN(t *testing.T) {
	ix := build(t, "python code basics", "java code basics")
	for _, q := range []string{"python", "", "zzz"} {
		results, err := ix.Query(q, 0)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Query(%q, 0) returned %d results", q, len(results))
		}
	}
}

func TestQueryNegativeTopN(t *testing.T) {
	ix := build(t, "python")
	results, err := ix.Query("python", -1)
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("Query(-1) error = %v, want ErrInvalidArgument", err)
	}
	if results != nil {
		t.Errorf("Query(-1) returned results %v", results)
	}
	if apperrors.HTTPStatusCode(err) != 400 {
		t.Errorf("status = %d, want 400", apperrors.HTTPStatusCode(err))
	}
}

func TestQueryUnknownTextScoresZero(t *testing.T) {
	ix := build(t, "python code", "java code", "go code")
	for _, q := range []string{"", "rust haskell", "!!!"} {
		results, err := ix.Query(q, 2)
		if err != nil {
			t.Fatalf("Query(%q) error = %v", q, err)
		}
		if len(results) != 2 {
			t.Fatalf("Query(%q) returned %d results, want 2", q, len(results))
		}
		for _, r := range results {
			if r.Score != 0 {
				t.Errorf("Query(%q) score = %v, want 0", q, r.Score)
			}
		}
		// ties resolve to later corpus positions first
		if want := []string{"doc2", "doc1"}; !reflect.DeepEqual(ids(results), want) {
			t.Errorf("Query(%q) order = %v, want %v", q, ids(results), want)
		}
	}
}

func TestQueryTieBreakByLaterPosition(t *testing.T) {
	ix := build(t, "same words here", "other stuff", "same words here")
	results, err := ix.Query("same words", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if results[0].Score != results[1].Score {
		t.Fatalf("identical documents scored %v and %v", results[0].Score, results[1].Score)
	}
	if want := []string{"doc2", "doc0", "doc1"}; !reflect.DeepEqual(ids(results), want) {
		t.Errorf("order = %v, want %v", ids(results), want)
	}
}

func TestQueryResultBounds(t *testing.T) {
	ix := build(t,
		"Python basics variables functions loops data types",
		"decorators generators context managers metaprogramming",
		"numpy pandas matplotlib data analysis statistics",
		"html css javascript flask django backend frontend",
		"regression classification sklearn tensorflow neural networks",
	)
	for _, n := range []int{1, 3, 5, 10} {
		results, err := ix.Query("learn data analysis with python", n)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if want := min(n, ix.Len()); len(results) != want {
			t.Errorf("n=%d: got %d results, want %d", n, len(results), want)
		}
		for i, r := range results {
			if r.Score < -tolerance || r.Score > 1+tolerance {
				t.Errorf("score %v out of range", r.Score)
			}
			if i > 0 && r.Score > results[i-1].Score {
				t.Errorf("scores increase at %d: %v > %v", i, r.Score, results[i-1].Score)
			}
		}
	}
}

func TestQuerySelfSimilarity(t *testing.T) {
	texts := []string{"decorators generators context managers", "numpy pandas data", "html css html"}
	ix := build(t, texts...)
	for i, text := range texts {
		results, err := ix.Query(text, 1)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if results[0].Document.ID != fmt.Sprintf("doc%d", i) {
			t.Errorf("Query(%q) top = %s", text, results[0].Document.ID)
		}
		if math.Abs(results[0].Score-1) > tolerance {
			t.Errorf("self score = %v, want 1", results[0].Score)
		}
	}
}

func TestDocumentVectorsNormalised(t *testing.T) {
	ix := build(t, "python code basics", "a", "", "code code code", "data science data")
	for i, v := range ix.vectors {
		if v.IsZero() {
			if v.Norm() != 0 {
				t.Errorf("vector %d: zero vector with norm %v", i, v.Norm())
			}
			continue
		}
		if math.Abs(v.Norm()-1) > tolerance {
			t.Errorf("vector %d: norm = %v, want 1", i, v.Norm())
		}
	}
}

func TestQueryDeterministic(t *testing.T) {
	ix := build(t, "alpha beta gamma", "beta gamma delta", "gamma delta epsilon", "alpha epsilon")
	first, err := ix.Query("alpha gamma epsilon", 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		got, _ := ix.Query("alpha gamma epsilon", 4)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestBuildIndependentOfWorkers(t *testing.T) {
	docs := make([]catalog.Document, 50)
	for i := range docs {
		docs[i] = catalog.Document{ID: fmt.Sprint(i), Text: fmt.Sprintf("term%d shared term%d", i%7, i%3)}
	}
	serial, err := Build(context.Background(), docs, WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Build(context.Background(), docs, WithWorkers(8))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := serial.Query("term3 shared term1", 50)
	b, _ := parallel.Query("term3 shared term1", 50)
	if !reflect.DeepEqual(a, b) {
		t.Error("results depend on worker count")
	}
}

func TestBuildCopiesCorpus(t *testing.T) {
	docs := []catalog.Document{{ID: "1", Text: "python"}}
	ix, err := Build(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	docs[0].ID = "changed"
	results, _ := ix.Query("python", 1)
	if results[0].Document.ID != "1" {
		t.Errorf("index observed caller mutation: %s", results[0].Document.ID)
	}
	ix.Documents()[0].ID = "changed"
	if ix.docs[0].ID != "1" {
		t.Error("Documents() exposed internal storage")
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ix, err := Build(ctx, []catalog.Document{{ID: "1", Text: "python"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
	if ix != nil {
		t.Error("Build() returned an index on cancellation")
	}
}

func TestConcurrentQueries(t *testing.T) {
	ix := build(t, "python code basics", "java code basics", "go concurrency channels")
	want, _ := ix.Query("code basics", 3)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ix.Query("code basics", 3)
			if err != nil || !reflect.DeepEqual(got, want) {
				t.Errorf("concurrent query diverged: %v, %v", got, err)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkQuery(b *testing.B) {
	for _, size := range []int{100, 5000} {
		docs := make([]catalog.Document, size)
		for i := range docs {
			docs[i] = catalog.Document{
				ID:   fmt.Sprint(i),
				Text: fmt.Sprintf("document %d covers topic%d and topic%d in detail", i, i%13, i%29),
			}
		}
		ix, err := Build(context.Background(), docs)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = ix.Query("topic3 and topic7 detail", 10)
			}
		})
	}
}

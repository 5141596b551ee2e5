package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.QueriesTotal.WithLabelValues("ok").Inc()
	m.IndexDocuments.Set(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`recommender_queries_total{outcome="ok"} 1`,
		"recommender_index_documents 5",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestNewIsolatedRegistries(t *testing.T) {
	// two instances must not collide on registration
	a, b := New(), New()
	a.CacheHitsTotal.Inc()
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(rec.Body.String(), "recommender_cache_hits_total 1") {
		t.Error("metrics leaked between registries")
	}
}

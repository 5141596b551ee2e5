// Package ranker orders scored corpus positions and selects the top N.
package ranker

import "container/heap"

// Scored is the similarity of one document, identified by its position in
// the corpus.
type Scored struct {
	Position int
	Score    float64
}

// Rank returns the n best entries of scores, highest score first. Entries
// with equal scores are ordered by position descending, so the later
// document in the corpus wins a tie. scores is not modified.
//
// Selection keeps a bounded min-heap of size n, which gives the same order a
// full descending sort would because positions are unique.
func Rank(scores []Scored, n int) []Scored {
	if n <= 0 || len(scores) == 0 {
		return []Scored{}
	}
	if n > len(scores) {
		n = len(scores)
	}
	h := make(worstFirst, 0, n+1)
	for _, s := range scores {
		if len(h) < n {
			heap.Push(&h, s)
			continue
		}
		if before(s, h[0]) {
			h[0] = s
			heap.Fix(&h, 0)
		}
	}
	result := make([]Scored, len(h))
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(Scored)
	}
	return result
}

// before reports whether a ranks ahead of b.
func before(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position > b.Position
}

// worstFirst is a heap whose root is the lowest-ranked entry.
type worstFirst []Scored

func (h worstFirst) Len() int { return len(h) }

func (h worstFirst) Less(i, j int) bool { return before(h[j], h[i]) }

func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) {
	*h = append(*h, x.(Scored))
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

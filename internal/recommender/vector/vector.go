// Package vector builds L2-normalised TF-IDF sparse vectors and scores
// them against each other with cosine similarity.
package vector

import (
	"math"
	"sort"
)

// Lookup resolves a token to its IDF weight, returning 0 for unknown tokens.
type Lookup interface {
	Get(token string) float64
}

type entry struct {
	token  string
	weight float64
}

// Sparse is a token -> weight vector with implicit zeros. A Sparse built by
// New has unit Euclidean norm, or is the all-zero vector when its input was
// empty or every weight came out 0. Entries are kept in token order so every
// sum over them is computed in the same order.
type Sparse struct {
	entries []entry
	index   map[string]float64
}

// New vectorises tokens against idf. Every distinct token gets an entry,
// including tokens the table does not know, whose weight is 0.
func New(tokens []string, idf Lookup) Sparse {
	if len(tokens) == 0 {
		return Sparse{}
	}
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	entries := make([]entry, 0, len(counts))
	total := float64(len(tokens))
	for token, count := range counts {
		tf := float64(count) / total
		entries = append(entries, entry{token: token, weight: tf * idf.Get(token)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].token < entries[j].token
	})

	norm := l2(entries)
	if norm == 0 {
		norm = 1
	}
	index := make(map[string]float64, len(entries))
	for i := range entries {
		entries[i].weight /= norm
		index[entries[i].token] = entries[i].weight
	}
	return Sparse{entries: entries, index: index}
}

func l2(entries []entry) float64 {
	var sum float64
	for _, e := range entries {
		sum += e.weight * e.weight
	}
	return math.Sqrt(sum)
}

// Len returns the number of tokens present, zero-weight ones included.
func (s Sparse) Len() int {
	return len(s.entries)
}

// Weight returns the weight of token, 0 if absent.
func (s Sparse) Weight(token string) float64 {
	return s.index[token]
}

// Norm returns the Euclidean norm: 1 for a normalised vector, 0 for the
// zero vector.
func (s Sparse) Norm() float64 {
	return l2(s.entries)
}

// IsZero reports whether every weight is 0.
func (s Sparse) IsZero() bool {
	for _, e := range s.entries {
		if e.weight != 0 {
			return false
		}
	}
	return true
}

// Tokens returns the tokens present in the vector in sorted order.
func (s Sparse) Tokens() []string {
	tokens := make([]string, len(s.entries))
	for i, e := range s.entries {
		tokens[i] = e.token
	}
	return tokens
}

// Similarity returns the cosine similarity of two vectors built by New,
// which for unit or zero vectors is their dot product. It walks the vector
// with fewer entries and looks each token up in the other. Both walks visit
// shared tokens in sorted order, so Similarity(a, b) and Similarity(b, a)
// are bit-identical.
func Similarity(a, b Sparse) float64 {
	if len(a.entries) > len(b.entries) {
		a, b = b, a
	}
	var dot float64
	for _, e := range a.entries {
		dot += e.weight * b.index[e.token]
	}
	return dot
}

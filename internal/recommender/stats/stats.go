// Package stats computes corpus-wide document frequencies and the smoothed
// inverse document frequency table shared by every vector of one index.
package stats

import "math"

// Table is an immutable token -> IDF mapping built from a tokenised corpus.
// Tokens absent from the corpus have no entry and look up as 0.
type Table struct {
	idf     map[string]float64
	df      map[string]int
	numDocs int
}

// Build counts, for every token, the number of documents whose token set
// contains it, then derives idf(t) = ln((N+1)/(df(t)+1)) + 1.
func Build(docs [][]string) *Table {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for token, count := range df {
		idf[token] = math.Log((n+1)/(float64(count)+1)) + 1
	}
	return &Table{
		idf:     idf,
		df:      df,
		numDocs: len(docs),
	}
}

// Get returns the IDF weight of token, or 0 if the corpus never contains it.
func (t *Table) Get(token string) float64 {
	return t.idf[token]
}

// DocFreq returns how many documents contain token at least once.
func (t *Table) DocFreq(token string) int {
	return t.df[token]
}

// DocCount returns the corpus size the table was built from.
func (t *Table) DocCount() int {
	return t.numDocs
}

// Len returns the vocabulary size.
func (t *Table) Len() int {
	return len(t.idf)
}

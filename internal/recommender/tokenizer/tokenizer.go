// Package tokenizer turns raw text into the normalised tokens the
// recommender indexes. It lower-cases input and extracts word-bounded runs
// of ASCII letters, digits and apostrophes, discarding single-character
// runs. There is no stop-word removal and no stemming.
//
// Word boundaries are Unicode-aware: letters and digits of any script, and
// the underscore, are word characters. A run touching one of them on either
// side is part of a larger word and yields no token, so "café" and
// "snake_case" produce nothing.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// runPattern finds maximal runs of token characters. Tokens are cut from
// these runs at word boundaries.
var runPattern = regexp.MustCompile(`[a-z0-9']+`)

// minTokenLen is the shortest run kept as a token.
const minTokenLen = 2

// Tokenize returns the tokens of text in order of occurrence. Duplicates are
// kept because term frequency depends on them.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	runs := runPattern.FindAllStringIndex(text, -1)
	tokens := make([]string, 0, len(runs))
	for _, run := range runs {
		tokens = appendBounded(tokens, text, run[0], run[1])
	}
	return tokens
}

// appendBounded appends the tokens inside text[start:end], an ASCII run of
// token characters. Each token starts at a word boundary and extends to the
// last word boundary in the run, matching a greedy `\b[a-z0-9']+\b`.
func appendBounded(tokens []string, text string, start, end int) []string {
	// bounds[i] reports a word boundary before text[start+i].
	bounds := make([]bool, end-start+1)
	for i := range bounds {
		bounds[i] = isBoundary(text, start+i)
	}
	last := -1
	for i := len(bounds) - 1; i > 0; i-- {
		if bounds[i] {
			last = i
			break
		}
	}
	for p := 0; p < len(bounds)-1 && p < last; p++ {
		if !bounds[p] {
			continue
		}
		if token := text[start+p : start+last]; len(token) >= minTokenLen {
			tokens = append(tokens, token)
		}
		p = last
	}
	return tokens
}

// isBoundary reports whether the word-character status changes at byte
// offset i of text.
func isBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWord(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWord(r)
	}
	return before != after
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Package catalog defines the documents a recommender index is built from
// and the sources that load a full corpus snapshot: a YAML/JSON catalog
// file, a PostgreSQL table, or the built-in sample catalog.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/errors"
)

const (
	maxIDLength    = 255
	maxTitleLength = 1024
	maxTextLength  = 1048576
)

// Document is one recommendable item. Only Text is indexed; ID and Title
// are carried through to results unchanged.
type Document struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Text  string `json:"text" yaml:"text"`
}

// Source loads a complete, ordered corpus. Order is significant: it decides
// which document wins a score tie.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// ValidationError holds per-field validation failure messages for one
// document.
type ValidationError struct {
	Position int
	Fields   map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s:%s", field, e.Fields[field])
	}
	return fmt.Sprintf("document %d: %s", e.Position, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidDocument
}

// Validate checks every document's length constraints. Empty text is valid;
// such a document simply never matches anything.
func Validate(docs []Document) error {
	for i, doc := range docs {
		errs := make(map[string]string)
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			errs["id"] = "id is required"
		} else if len(id) > maxIDLength {
			errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
		}
		if len(doc.Title) > maxTitleLength {
			errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
		if len(doc.Text) > maxTextLength {
			errs["text"] = fmt.Sprintf("text must be at most %d characters", maxTextLength)
		}
		if len(errs) > 0 {
			return &ValidationError{Position: i, Fields: errs}
		}
	}
	return nil
}

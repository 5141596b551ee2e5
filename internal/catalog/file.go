package catalog

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileSource reads a catalog file holding a list of documents. YAML and
// JSON are both accepted since JSON is valid YAML.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source reading path on every Load.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Load(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", s.Path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON document list and validates it.
func Parse(data []byte) ([]Document, error) {
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w: %w", apperrors.ErrInvalidDocument, err)
	}
	if docs == nil {
		docs = []Document{}
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

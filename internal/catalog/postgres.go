package catalog

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/postgres"
)

// PostgresSource loads the corpus from the catalog_items table:
//
//	CREATE TABLE catalog_items (
//	    id       TEXT PRIMARY KEY,
//	    title    TEXT NOT NULL DEFAULT '',
//	    body     TEXT NOT NULL DEFAULT '',
//	    position BIGSERIAL
//	);
type PostgresSource struct {
	db *postgres.Client
}

func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Load(ctx context.Context) ([]Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, title, body FROM catalog_items ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog items: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Text); err != nil {
			return nil, fmt.Errorf("scanning catalog item: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog items: %w", err)
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Command recommend answers a single query against a catalog from the
// command line. Without -catalog it uses the built-in sample catalog; without
// -q it prompts for the query on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/logger"
)

func main() {
	catalogPath := flag.String("catalog", "", "YAML or JSON catalog file (default: built-in sample)")
	query := flag.String("q", "", "query text (prompted for when empty)")
	topN := flag.Int("n", 3, "number of recommendations")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger.Setup(*logLevel, "text")

	if err := run(context.Background(), os.Stdin, os.Stdout, *catalogPath, *query, *topN); err != nil {
		fmt.Fprintf(os.Stderr, "recommend: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, catalogPath, query string, topN int) error {
	var source catalog.Source = catalog.SampleSource{}
	if catalogPath != "" {
		source = catalog.NewFileSource(catalogPath)
	}
	docs, err := source.Load(ctx)
	if err != nil {
		return err
	}
	idx, err := recommender.Build(ctx, docs)
	if err != nil {
		return err
	}

	if query == "" {
		fmt.Fprint(out, "Describe what you want (e.g., 'learn data analysis'): ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading query: %w", err)
		}
		query = strings.TrimSpace(line)
	}

	results, err := idx.Query(query, topN)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nTop recommendations:")
	for _, r := range results {
		fmt.Fprintf(out, "%s (score: %.3f) - id:%s\n", r.Document.Title, r.Score, r.Document.ID)
	}
	return nil
}

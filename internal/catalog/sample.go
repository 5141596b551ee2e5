package catalog

import "context"

var sample = []Document{
	{ID: "1", Title: "Intro to Python", Text: "Python basics variables functions loops data types"},
	{ID: "2", Title: "Advanced Python", Text: "decorators generators context managers metaprogramming"},
	{ID: "3", Title: "Data Science with Python", Text: "numpy pandas matplotlib data analysis statistics"},
	{ID: "4", Title: "Web Development", Text: "html css javascript flask django backend frontend"},
	{ID: "5", Title: "Machine Learning", Text: "regression classification sklearn tensorflow neural networks"},
}

// SampleSource serves a small built-in course catalog, useful for demos and
// local runs without a catalog file or database.
type SampleSource struct{}

func (SampleSource) Load(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Document(nil), sample...), nil
}

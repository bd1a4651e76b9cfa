// Package source lists reports to analyze and fetches their definitions,
// from the Power BI service or from stored definition files.
package source

import (
	"context"
	"errors"

	"pb-analyzer/internal/powerbi"
)

var ErrUnknownItem = errors.New("unknown report")

// Item is one report to analyze plus the metadata that goes to the output.
type Item struct {
	ID             string
	Name           string
	SharedBy       string
	PublishedToWeb bool
	Row            []string // embed mode: the input CSV row
}

type Source interface {
	// Kind names the source in logs and cache keys.
	Kind() string
	List(ctx context.Context) ([]Item, error)
	Fetch(ctx context.Context, item Item) (*powerbi.Definition, error)
}

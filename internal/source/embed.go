package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"pb-analyzer/internal/powerbi"
)

// EmbedURLColumn is the position of the embed URL in the admin portal's
// "embed codes" export.
const EmbedURLColumn = 4

// Embed reads the admin portal's embed codes CSV and fetches every listed
// report through its public endpoints.
type Embed struct {
	client  *powerbi.Client
	path    string
	headers []string
}

func NewEmbed(client *powerbi.Client, path string) *Embed {
	return &Embed{client: client, path: path}
}

func (e *Embed) Kind() string { return "embed" }

// Headers returns the input CSV header row. It is set by List.
func (e *Embed) Headers() []string {
	return e.headers
}

func (e *Embed) List(ctx context.Context) ([]Item, error) {
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("open embed codes: %w", err)
	}
	defer f.Close()

	headers, rows, err := ReadEmbedCodes(f)
	if err != nil {
		return nil, fmt.Errorf("read embed codes %s: %w", e.path, err)
	}
	e.headers = headers

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		// Rows without an embed URL stay in the batch with an empty ID and
		// fail individually in Fetch.
		items = append(items, Item{
			ID:   strings.TrimSpace(row[EmbedURLColumn]),
			Name: row[0],
			Row:  row,
		})
	}
	return items, nil
}

func (e *Embed) Fetch(ctx context.Context, item Item) (*powerbi.Definition, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("%w: row without embed url", ErrUnknownItem)
	}
	return e.client.PublicDefinition(ctx, item.ID)
}

// ReadEmbedCodes parses the export. Rows too short to carry an embed URL
// are padded with empty fields, never dropped, so the output keeps one line
// per input.
func ReadEmbedCodes(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, err
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if width := max(len(headers), EmbedURLColumn+1); len(row) < width {
			row = append(row, make([]string, width-len(row))...)
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

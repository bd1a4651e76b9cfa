package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"pb-analyzer/internal/powerbi"
)

const (
	SchemaSuffix      = ".schema.json"
	ExplorationSuffix = ".exploration.json"
)

type pair struct {
	schema      string
	exploration string
}

// pairKeys groups "<name>.schema.json" / "<name>.exploration.json" keys by
// name. Names without a schema are dropped; a missing exploration is
// allowed and analyzes as a report with no visuals.
func pairKeys(keys []string, prefix string) ([]string, map[string]pair) {
	pairs := make(map[string]pair)
	for _, k := range keys {
		rel := strings.TrimPrefix(k, prefix)
		switch {
		case strings.HasSuffix(rel, SchemaSuffix):
			name := strings.TrimSuffix(rel, SchemaSuffix)
			p := pairs[name]
			p.schema = k
			pairs[name] = p
		case strings.HasSuffix(rel, ExplorationSuffix):
			name := strings.TrimSuffix(rel, ExplorationSuffix)
			p := pairs[name]
			p.exploration = k
			pairs[name] = p
		}
	}

	var names []string
	for name, p := range pairs {
		if p.schema == "" || name == "" {
			delete(pairs, name)
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, pairs
}

// Dir reads definition pairs from a local directory.
type Dir struct {
	root  string
	pairs map[string]pair
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Kind() string { return "dir" }

func (d *Dir) List(ctx context.Context) ([]Item, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			keys = append(keys, e.Name())
		}
	}

	names, pairs := pairKeys(keys, "")
	d.pairs = pairs
	items := make([]Item, 0, len(names))
	for _, n := range names {
		items = append(items, Item{ID: n, Name: n})
	}
	return items, nil
}

func (d *Dir) Fetch(ctx context.Context, item Item) (*powerbi.Definition, error) {
	p, ok := d.pairs[item.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, item.ID)
	}
	return readPair(item.ID, filepath.Join(d.root, p.schema), joinIf(d.root, p.exploration))
}

// Files is a single schema/exploration pair given by path.
type Files struct {
	schemaPath      string
	explorationPath string
}

func NewFiles(schemaPath, explorationPath string) *Files {
	return &Files{schemaPath: schemaPath, explorationPath: explorationPath}
}

func (f *Files) Kind() string { return "files" }

func (f *Files) List(ctx context.Context) ([]Item, error) {
	name := strings.TrimSuffix(filepath.Base(f.schemaPath), SchemaSuffix)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return []Item{{ID: name, Name: name}}, nil
}

func (f *Files) Fetch(ctx context.Context, item Item) (*powerbi.Definition, error) {
	return readPair(item.ID, f.schemaPath, f.explorationPath)
}

func readPair(id, schemaPath, explorationPath string) (*powerbi.Definition, error) {
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	def := &powerbi.Definition{ReportID: id, Schema: schema}
	if explorationPath != "" {
		if def.Exploration, err = os.ReadFile(explorationPath); err != nil {
			return nil, fmt.Errorf("read exploration: %w", err)
		}
	}
	return def, nil
}

func joinIf(root, name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(root, name)
}

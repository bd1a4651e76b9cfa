package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is matched by every ParseError.
var ErrMalformed = errors.New("malformed schema description")

// ParseError describes where a conceptual schema stopped making sense.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

func malformed(path, format string, args ...any) error {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Engine-generated date tables. They never belong to the report author.
var generatedTablePrefixes = []string{"DateTableTemplate", "LocalDateTable"}

func isGeneratedTable(name string) bool {
	for _, p := range generatedTablePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Parse decodes raw conceptual schema bytes and extracts the catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("$", "invalid JSON: %v", err)
	}
	return Extract(doc)
}

// Extract builds a Catalog from a decoded conceptual schema. The document is
// either {"schemas":[{"schema":{"Entities":[...]}}]} as returned by the
// service, or a bare {"Entities":[...]} object.
func Extract(doc any) (*Catalog, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, malformed("$", "root is %s, want object", kindOf(doc))
	}

	var tables []*Table

	// --- Step 1: Locate entity lists ---
	switch {
	case root["schemas"] != nil:
		schemas, ok := root["schemas"].([]any)
		if !ok {
			return nil, malformed("$.schemas", "is %s, want array", kindOf(root["schemas"]))
		}
		for i, s := range schemas {
			path := fmt.Sprintf("$.schemas[%d]", i)
			sm, ok := s.(map[string]any)
			if !ok {
				return nil, malformed(path, "is %s, want object", kindOf(s))
			}
			if inner, exists := sm["schema"]; exists {
				path += ".schema"
				if sm, ok = inner.(map[string]any); !ok {
					return nil, malformed(path, "is %s, want object", kindOf(inner))
				}
			}
			ts, err := extractEntities(sm, path)
			if err != nil {
				return nil, err
			}
			tables = append(tables, ts...)
		}
	case root["Entities"] != nil:
		ts, err := extractEntities(root, "$")
		if err != nil {
			return nil, err
		}
		tables = ts
	default:
		return nil, malformed("$", "neither schemas nor Entities present")
	}

	return NewCatalog(tables), nil
}

func extractEntities(schema map[string]any, path string) ([]*Table, error) {
	raw, exists := schema["Entities"]
	if !exists || raw == nil {
		return nil, nil
	}
	entities, ok := raw.([]any)
	if !ok {
		return nil, malformed(path+".Entities", "is %s, want array", kindOf(raw))
	}

	var tables []*Table
	for i, e := range entities {
		epath := fmt.Sprintf("%s.Entities[%d]", path, i)
		em, ok := e.(map[string]any)
		if !ok {
			return nil, malformed(epath, "is %s, want object", kindOf(e))
		}
		name, err := requiredName(em, epath)
		if err != nil {
			return nil, err
		}
		if isGeneratedTable(name) {
			continue
		}

		t := &Table{Name: name, IsHidden: boolField(em, "Hidden")}

		// --- Step 2: Properties (columns and measures) ---
		if raw, exists := em["Properties"]; exists && raw != nil {
			props, ok := raw.([]any)
			if !ok {
				return nil, malformed(epath+".Properties", "is %s, want array", kindOf(raw))
			}
			for j, p := range props {
				ppath := fmt.Sprintf("%s.Properties[%d]", epath, j)
				pm, ok := p.(map[string]any)
				if !ok {
					return nil, malformed(ppath, "is %s, want object", kindOf(p))
				}
				pname, err := requiredName(pm, ppath)
				if err != nil {
					return nil, err
				}

				if m, isMeasure := pm["Measure"].(map[string]any); isMeasure {
					expr, _ := m["Expression"].(string)
					t.Measures = append(t.Measures, &Measure{
						Table:      name,
						Name:       pname,
						Expression: expr,
						IsHidden:   boolField(pm, "Hidden"),
					})
					continue
				}

				col := &Column{
					Table:    name,
					Name:     pname,
					DataType: scalarString(pm["DataType"]),
					IsHidden: boolField(pm, "Hidden"),
				}
				if cm, ok := pm["Column"].(map[string]any); ok {
					col.IsCalculated = boolField(cm, "Calculated") || cm["Expression"] != nil
				}
				col.IsCalculated = col.IsCalculated || boolField(pm, "IsCalculated")
				t.Columns = append(t.Columns, col)
			}
		}

		// --- Step 3: Hierarchies ---
		if raw, exists := em["Hierarchies"]; exists && raw != nil {
			hs, ok := raw.([]any)
			if !ok {
				return nil, malformed(epath+".Hierarchies", "is %s, want array", kindOf(raw))
			}
			for j, h := range hs {
				hpath := fmt.Sprintf("%s.Hierarchies[%d]", epath, j)
				hm, ok := h.(map[string]any)
				if !ok {
					return nil, malformed(hpath, "is %s, want object", kindOf(h))
				}
				hname, err := requiredName(hm, hpath)
				if err != nil {
					return nil, err
				}
				t.Hierarchies = append(t.Hierarchies, &Hierarchy{
					Table:  name,
					Name:   hname,
					Levels: extractLevels(hm),
				})
			}
		}

		tables = append(tables, t)
	}
	return tables, nil
}

// extractLevels is lenient: a level without a column reference is assumed to
// be built on the column that shares its name.
func extractLevels(hm map[string]any) []Level {
	raw, _ := hm["Levels"].([]any)
	levels := make([]Level, 0, len(raw))
	for _, l := range raw {
		lm, ok := l.(map[string]any)
		if !ok {
			continue
		}
		name, _ := lm["Name"].(string)
		col := name
		switch c := lm["Column"].(type) {
		case map[string]any:
			if p, ok := c["Property"].(string); ok && p != "" {
				col = p
			}
		case string:
			col = c
		}
		if name == "" && col == "" {
			continue
		}
		levels = append(levels, Level{Name: name, Column: col})
	}
	return levels
}

func requiredName(m map[string]any, path string) (string, error) {
	raw, exists := m["Name"]
	if !exists {
		return "", malformed(path, "missing Name")
	}
	name, ok := raw.(string)
	if !ok {
		return "", malformed(path+".Name", "is %s, want string", kindOf(raw))
	}
	if strings.TrimSpace(name) == "" {
		return "", malformed(path+".Name", "is empty")
	}
	return name, nil
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

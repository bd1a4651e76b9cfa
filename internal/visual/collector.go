package visual

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// DefaultMaxDepth bounds nesting of the report tree. Real reports stay well
// below it; anything deeper is treated as a structural anomaly.
const DefaultMaxDepth = 128

// role is the syntactic position a column is reached from.
type role int

const (
	roleDirect role = iota
	roleAggregation
	roleExpression
)

// Wrappers whose operands are computed expressions rather than plain
// field bindings.
var expressionWrappers = map[string]bool{
	"Arithmetic": true, "Comparison": true, "Conditional": true, "Case": true,
	"Not": true, "And": true, "Or": true, "In": true, "Between": true,
	"DateSpan": true, "DateAdd": true, "Contains": true, "StartsWith": true,
	"EndsWith": true, "Exists": true, "Floor": true, "Discretize": true,
	"ScopedEval": true, "SparklineData": true, "TransformOutputRoleRef": true,
}

// Keys whose values are JSON documents serialized into strings.
var embeddedJSONKeys = map[string]bool{
	"config": true, "filters": true, "query": true, "dataTransforms": true,
}

type Collector struct {
	maxDepth  int
	logger    *slog.Logger
	anomalies []Anomaly
}

type Option func(*Collector)

func WithMaxDepth(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector returns a collector for one report at a time. It is not safe
// for concurrent use.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Anomalies returns the structural problems met by the last iteration.
func (c *Collector) Anomalies() []Anomaly {
	return c.anomalies
}

// Collect lazily yields every field reference found in a decoded report
// tree. Strings holding serialized JSON are decoded and walked in place.
// Traversal uses an explicit stack, so depth is bounded by MaxDepth rather
// than by the goroutine stack.
func (c *Collector) Collect(tree any) iter.Seq[FieldReference] {
	return func(yield func(FieldReference) bool) {
		c.anomalies = nil
		w := &walker{c: c, yield: yield}
		w.push(frame{node: tree, path: "$"})
		for len(w.stack) > 0 {
			f := w.stack[len(w.stack)-1]
			w.stack = w.stack[:len(w.stack)-1]
			if !w.visit(f) {
				return
			}
		}
	}
}

// CollectAll drains Collect into a slice.
func (c *Collector) CollectAll(tree any) []FieldReference {
	return slices.Collect(c.Collect(tree))
}

type frame struct {
	node  any
	depth int
	path  string
	role  role
	scope *scope
}

// scope maps query aliases ("s") to entity names ("Sales"), as declared by
// the nearest enclosing From list.
type scope struct {
	aliases map[string]string
	parent  *scope
}

func newScope(from []any, parent *scope) *scope {
	s := &scope{aliases: make(map[string]string), parent: parent}
	for _, item := range from {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["Name"].(string)
		entity, _ := m["Entity"].(string)
		if name != "" && entity != "" {
			s.aliases[name] = entity
		}
	}
	return s
}

func (s *scope) entity(alias string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.aliases[alias]; ok {
			return e, true
		}
	}
	return "", false
}

type walker struct {
	c     *Collector
	yield func(FieldReference) bool
	stack []frame
}

func (w *walker) push(f frame) {
	w.stack = append(w.stack, f)
}

func (w *walker) child(parent frame, node any, path string, r role, sc *scope) {
	switch node.(type) {
	case map[string]any, []any, string:
		w.push(frame{node: node, depth: parent.depth + 1, path: path, role: r, scope: sc})
	}
}

func (w *walker) anomaly(path, format string, args ...any) {
	a := Anomaly{Path: path, Reason: fmt.Sprintf(format, args...)}
	w.c.anomalies = append(w.c.anomalies, a)
	w.c.logger.Warn("report tree anomaly", slog.String("path", a.Path), slog.String("reason", a.Reason))
}

func (w *walker) visit(f frame) bool {
	if f.depth > w.c.maxDepth {
		w.anomaly(f.path, "nesting exceeds %d levels, subtree skipped", w.c.maxDepth)
		return true
	}

	switch n := f.node.(type) {
	case map[string]any:
		return w.visitObject(f, n)
	case []any:
		for i := len(n) - 1; i >= 0; i-- {
			w.child(f, n[i], fmt.Sprintf("%s[%d]", f.path, i), f.role, f.scope)
		}
	case string:
		if decoded, ok := decodeEmbedded(n); ok {
			w.push(frame{node: decoded, depth: f.depth, path: f.path, role: f.role, scope: f.scope})
		}
	}
	return true
}

func (w *walker) visitObject(f frame, m map[string]any) bool {
	sc := f.scope
	if from, ok := m["From"].([]any); ok {
		sc = newScope(from, sc)
	}

	keys := slices.Sorted(maps.Keys(m))
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		v := m[k]
		path := f.path + "." + k

		switch k {
		case "Column", "Measure":
			if ref, ok := fieldRef(v, sc); ok {
				switch {
				case k == "Measure":
					ref.Kind = KindMeasure
				case f.role == roleAggregation:
					ref.Kind = KindAggregation
				case f.role == roleExpression:
					ref.Kind = KindExpression
				}
				if !w.yield(ref) {
					return false
				}
				continue
			}
		case "Aggregation":
			w.child(f, v, path, roleAggregation, sc)
			continue
		case "HierarchyLevel":
			if hm, ok := v.(map[string]any); ok {
				level, _ := hm["Level"].(string)
				if ref, ok := hierarchyRef(dig(hm, "Expression", "Hierarchy"), level, sc); ok {
					if !w.yield(ref) {
						return false
					}
					continue
				}
			}
		case "Hierarchy":
			if ref, ok := hierarchyRef(v, "", sc); ok {
				if !w.yield(ref) {
					return false
				}
				continue
			}
		case "NativeVisualCalculation":
			if expr, ok := dig(v, "Expression").(string); ok {
				if !w.yieldAll(ExpressionRefs(expr)) {
					return false
				}
				continue
			}
		case "Expression", "expression":
			if expr, ok := v.(string); ok {
				if !w.yieldAll(ExpressionRefs(expr)) {
					return false
				}
				continue
			}
		case "queryRef", "queryName":
			if s, ok := v.(string); ok {
				if ref, ok := ParseQueryRef(s); ok {
					if !w.yield(ref) {
						return false
					}
				}
				continue
			}
		}

		if expressionWrappers[k] {
			w.child(f, v, path, roleExpression, sc)
			continue
		}

		if s, ok := v.(string); ok && embeddedJSONKeys[k] {
			decoded, ok := decodeEmbedded(s)
			if !ok {
				if looksLikeJSON(s) {
					w.anomaly(path, "embedded JSON does not decode")
				}
				continue
			}
			w.child(f, decoded, path, f.role, sc)
			continue
		}

		w.child(f, v, path, f.role, sc)
	}
	return true
}

func (w *walker) yieldAll(refs []FieldReference) bool {
	for _, r := range refs {
		if !w.yield(r) {
			return false
		}
	}
	return true
}

// fieldRef reads {"Expression":{"SourceRef":{...}},"Property":"X"}.
func fieldRef(v any, sc *scope) (FieldReference, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return FieldReference{}, false
	}
	prop, _ := m["Property"].(string)
	if prop == "" {
		return FieldReference{}, false
	}

	expr, _ := m["Expression"].(map[string]any)
	if pvs, ok := expr["PropertyVariationSource"].(map[string]any); ok {
		// A column of an auto date table. The model column is the varied one.
		if varied, _ := pvs["Property"].(string); varied != "" {
			return FieldReference{Qualifier: sourceEntity(pvs["Expression"], sc), Name: varied, Kind: KindColumn}, true
		}
	}
	return FieldReference{Qualifier: sourceEntity(expr, sc), Name: prop, Kind: KindColumn}, true
}

// hierarchyRef reads {"Expression":{...},"Hierarchy":"H"}.
func hierarchyRef(v any, level string, sc *scope) (FieldReference, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return FieldReference{}, false
	}
	name, _ := m["Hierarchy"].(string)
	if name == "" {
		return FieldReference{}, false
	}
	expr, _ := m["Expression"].(map[string]any)
	if pvs, ok := expr["PropertyVariationSource"].(map[string]any); ok {
		if varied, _ := pvs["Property"].(string); varied != "" {
			return FieldReference{Qualifier: sourceEntity(pvs["Expression"], sc), Name: varied, Kind: KindColumn}, true
		}
	}
	return FieldReference{
		Qualifier: sourceEntity(expr, sc),
		Name:      level,
		Kind:      KindHierarchyLevel,
		Hierarchy: name,
		Level:     level,
	}, true
}

// sourceEntity returns the table named by {"SourceRef":{"Entity"|"Source"}}.
// An alias with no declaration yields an unqualified reference.
func sourceEntity(v any, sc *scope) string {
	ref, ok := dig(v, "SourceRef").(map[string]any)
	if !ok {
		return ""
	}
	if e, ok := ref["Entity"].(string); ok && e != "" {
		return e
	}
	if alias, ok := ref["Source"].(string); ok && alias != "" {
		if e, ok := sc.entity(alias); ok {
			return e
		}
	}
	return ""
}

func dig(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > 1 && (s[0] == '{' || s[0] == '[')
}

func decodeEmbedded(s string) (any, bool) {
	if !looksLikeJSON(s) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

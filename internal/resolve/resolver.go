package resolve

import (
	"iter"
	"log/slog"

	"pb-analyzer/internal/schema"
	"pb-analyzer/internal/visual"
)

type Status int

const (
	Resolved Status = iota
	Unresolved
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Resolution is a field reference mapped onto the catalog.
//
// A Resolved reference targets either one measure or one or more columns
// (a whole hierarchy expands to all of its level columns). An Ambiguous
// reference lists every column sharing the bare name.
type Resolution struct {
	Ref     visual.FieldReference
	Status  Status
	Columns []int // catalog column indexes
	Measure *schema.Measure
}

// Resolver maps raw references onto one report's catalog. It holds no state
// beyond the catalog and is safe for concurrent use.
type Resolver struct {
	catalog *schema.Catalog
	logger  *slog.Logger
}

func New(catalog *schema.Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{catalog: catalog, logger: logger}
}

// ResolveAll resolves a reference stream lazily.
func (r *Resolver) ResolveAll(refs iter.Seq[visual.FieldReference]) iter.Seq[Resolution] {
	return func(yield func(Resolution) bool) {
		for ref := range refs {
			if !yield(r.Resolve(ref)) {
				return
			}
		}
	}
}

func (r *Resolver) Resolve(ref visual.FieldReference) Resolution {
	var res Resolution
	switch ref.Kind {
	case visual.KindMeasure:
		res = r.measure(ref)
	case visual.KindHierarchyLevel:
		res = r.hierarchyLevel(ref)
	case visual.KindExpression, visual.KindQueryRef:
		// Either a column or a measure; columns take precedence.
		res = r.column(ref)
		if res.Status == Unresolved {
			if m := r.measure(ref); m.Status != Unresolved {
				res = m
			}
		}
	default:
		res = r.column(ref)
	}

	if res.Status != Resolved {
		r.logger.Debug("reference not resolved",
			slog.String("ref", ref.String()),
			slog.String("kind", ref.Kind.String()),
			slog.String("status", res.Status.String()),
		)
	}
	return res
}

func (r *Resolver) column(ref visual.FieldReference) Resolution {
	if ref.Qualifier != "" {
		if i, ok := r.catalog.LookupColumn(ref.Qualifier, ref.Name); ok {
			return Resolution{Ref: ref, Status: Resolved, Columns: []int{i}}
		}
		return Resolution{Ref: ref, Status: Unresolved}
	}

	matches := r.catalog.ColumnsNamed(ref.Name)
	switch len(matches) {
	case 0:
		return Resolution{Ref: ref, Status: Unresolved}
	case 1:
		return Resolution{Ref: ref, Status: Resolved, Columns: []int{matches[0]}}
	default:
		return Resolution{Ref: ref, Status: Ambiguous, Columns: append([]int(nil), matches...)}
	}
}

// measure never yields columns, so an ambiguous measure name marks nothing.
func (r *Resolver) measure(ref visual.FieldReference) Resolution {
	if ref.Qualifier != "" {
		if m, ok := r.catalog.LookupMeasure(ref.Qualifier, ref.Name); ok {
			return Resolution{Ref: ref, Status: Resolved, Measure: m}
		}
		return Resolution{Ref: ref, Status: Unresolved}
	}

	matches := r.catalog.MeasuresNamed(ref.Name)
	switch len(matches) {
	case 0:
		return Resolution{Ref: ref, Status: Unresolved}
	case 1:
		return Resolution{Ref: ref, Status: Resolved, Measure: matches[0]}
	default:
		return Resolution{Ref: ref, Status: Ambiguous}
	}
}

func (r *Resolver) hierarchyLevel(ref visual.FieldReference) Resolution {
	// "Table.Unit.Price" is also how a queryRef spells a dotted column name.
	if ref.Hierarchy != "" && ref.Level != "" {
		dotted := visual.FieldReference{Qualifier: ref.Qualifier, Name: ref.Hierarchy + "." + ref.Level, Kind: visual.KindColumn}
		if res := r.column(dotted); res.Status != Unresolved {
			res.Ref = ref
			return res
		}
	}

	var h *schema.Hierarchy
	if ref.Qualifier != "" {
		h, _ = r.catalog.LookupHierarchy(ref.Qualifier, ref.Hierarchy)
	} else {
		hs := r.catalog.HierarchiesNamed(ref.Hierarchy)
		if len(hs) > 1 {
			// Same hierarchy name in several tables: every matching level counts.
			var cols []int
			for _, cand := range hs {
				cols = append(cols, r.levelColumns(cand, ref.Level)...)
			}
			if len(cols) == 0 {
				return Resolution{Ref: ref, Status: Unresolved}
			}
			return Resolution{Ref: ref, Status: Ambiguous, Columns: cols}
		}
		if len(hs) == 1 {
			h = hs[0]
		}
	}

	if h == nil {
		// Unknown hierarchy: the level may still name a column of the table.
		if ref.Level == "" {
			return Resolution{Ref: ref, Status: Unresolved}
		}
		res := r.column(visual.FieldReference{Qualifier: ref.Qualifier, Name: ref.Level, Kind: visual.KindColumn})
		res.Ref = ref
		return res
	}

	cols := r.levelColumns(h, ref.Level)
	if len(cols) == 0 {
		return Resolution{Ref: ref, Status: Unresolved}
	}
	return Resolution{Ref: ref, Status: Resolved, Columns: cols}
}

// levelColumns returns the columns behind level (all levels when empty).
func (r *Resolver) levelColumns(h *schema.Hierarchy, level string) []int {
	var cols []int
	for _, lvl := range h.Levels {
		if level != "" && !schema.SameName(lvl.Name, level) {
			continue
		}
		if i, ok := r.catalog.LookupColumn(h.Table, lvl.Column); ok {
			cols = append(cols, i)
		}
	}
	return cols
}

package visual

import "fmt"

// Kind is the syntactic form a field reference was found in.
type Kind int

const (
	KindColumn Kind = iota
	KindHierarchyLevel
	KindAggregation
	KindMeasure
	KindExpression
	KindQueryRef
)

func (k Kind) String() string {
	switch k {
	case KindColumn:
		return "column"
	case KindHierarchyLevel:
		return "hierarchy-level"
	case KindAggregation:
		return "aggregation"
	case KindMeasure:
		return "measure"
	case KindExpression:
		return "expression"
	case KindQueryRef:
		return "query-ref"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldReference is a raw, unresolved mention of a model field.
type FieldReference struct {
	Qualifier string // table name, empty when unqualified
	Name      string
	Kind      Kind

	// Set for KindHierarchyLevel. An empty Level means the whole hierarchy.
	Hierarchy string
	Level     string
}

func (r FieldReference) String() string {
	if r.Kind == KindHierarchyLevel {
		return fmt.Sprintf("%s.%s.%s", r.Qualifier, r.Hierarchy, r.Level)
	}
	if r.Qualifier == "" {
		return "[" + r.Name + "]"
	}
	return r.Qualifier + "." + r.Name
}

// Anomaly is a structural problem in the report tree. It never aborts
// collection; the affected subtree is skipped.
type Anomaly struct {
	Path   string
	Reason string
}

func (a Anomaly) Error() string {
	return fmt.Sprintf("structural anomaly at %s: %s", a.Path, a.Reason)
}

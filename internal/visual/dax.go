package visual

import (
	"regexp"
	"strings"
)

var (
	daxString  = regexp.MustCompile(`"(?:[^"]|"")*"`)
	daxComment = regexp.MustCompile(`(?s)//[^\n]*|--[^\n]*|/\*.*?\*/`)
	// 'Table Name'[Column], Table[Column] or [Column]
	daxRef = regexp.MustCompile(`(?:'((?:[^']|'')+)'|([\p{L}_][\p{L}\p{N}_]*))?\[([^\]]+)\]`)

	aggregateCall = regexp.MustCompile(`^([\p{L}]+)\((.+)\)$`)
)

// ExpressionRefs extracts the field references named in a DAX expression.
// String literals and comments are ignored.
func ExpressionRefs(expr string) []FieldReference {
	expr = daxString.ReplaceAllString(expr, `""`)
	expr = daxComment.ReplaceAllString(expr, " ")

	var refs []FieldReference
	for _, m := range daxRef.FindAllStringSubmatch(expr, -1) {
		table := m[1]
		if table != "" {
			table = strings.ReplaceAll(table, "''", "'")
		} else {
			table = m[2]
		}
		name := strings.TrimSpace(m[3])
		if name == "" {
			continue
		}
		refs = append(refs, FieldReference{Qualifier: table, Name: name, Kind: KindExpression})
	}
	return refs
}

// ParseQueryRef reads the textual projection names used by visuals:
// "Sales.Amount", "Sum(Sales.Amount)", "Date.Calendar.Year" (hierarchy
// level) and "Sales.OrderDate.Variation.Date Hierarchy.Year" (date
// variation of a column).
func ParseQueryRef(s string) (FieldReference, bool) {
	s = strings.TrimSpace(s)
	kind := KindQueryRef
	if m := aggregateCall.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[2])
		kind = KindAggregation
	}

	table, rest, ok := strings.Cut(s, ".")
	if !ok || table == "" || rest == "" {
		return FieldReference{}, false
	}

	parts := strings.Split(rest, ".")
	switch {
	case len(parts) == 1 || kind == KindAggregation:
		return FieldReference{Qualifier: table, Name: rest, Kind: kind}, true
	case len(parts) >= 3 && parts[1] == "Variation":
		return FieldReference{Qualifier: table, Name: parts[0], Kind: KindColumn}, true
	default:
		level := strings.Join(parts[1:], ".")
		return FieldReference{
			Qualifier: table,
			Name:      level,
			Kind:      KindHierarchyLevel,
			Hierarchy: parts[0],
			Level:     level,
		}, true
	}
}

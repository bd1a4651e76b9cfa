package dialect

import (
	"fmt"
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// columnList renders "name TYPE [NOT NULL]" entries for CREATE TABLE.
func columnList(d Dialect, cols []ColumnDef) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		p := d.QuoteIdent(c.Name) + " " + d.TypeName(c)
		if !c.Nullable {
			p += " NOT NULL"
		}
		parts[i] = p
	}
	return strings.Join(parts, ", ")
}

func quoteAll(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func insertQuery(d Dialect, table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table), quoteAll(d, cols), GeneratePlaceholders(len(cols), d.Placeholder))
}

func stringSize(c ColumnDef) int {
	if c.Size <= 0 {
		return 255
	}
	return c.Size
}

package schema

import (
	"cmp"
	"slices"
	"strings"
)

type Table struct {
	Name        string
	IsHidden    bool
	Columns     []*Column
	Measures    []*Measure
	Hierarchies []*Hierarchy
}

type Column struct {
	Table        string
	Name         string
	DataType     string // informational only
	IsHidden     bool
	IsCalculated bool
}

// Key returns the "Table.Column" form used in reports and CSV output.
func (c *Column) Key() string {
	return c.Table + "." + c.Name
}

type Measure struct {
	Table      string
	Name       string
	Expression string
	IsHidden   bool
}

func (m *Measure) Key() string {
	return m.Table + "." + m.Name
}

type Hierarchy struct {
	Table  string
	Name   string
	Levels []Level
}

// Level is one step of a hierarchy, built on a column of the same table.
type Level struct {
	Name   string
	Column string
}

// Catalog is the flattened, read-only view of one report's data model.
// Columns are indexed in (table, name) order; the index of a column is
// stable for the lifetime of the catalog.
type Catalog struct {
	tables  []*Table
	columns []*Column

	columnByKey   map[string]int
	columnsByName map[string][]int

	measureByKey   map[string]*Measure
	measuresByName map[string][]*Measure

	hierarchyByKey    map[string]*Hierarchy
	hierarchiesByName map[string][]*Hierarchy
}

// fold is the lookup key for a Power BI object name. Names are matched
// case-insensitively by the service.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameName compares two object names the way the service does.
func SameName(a, b string) bool {
	return fold(a) == fold(b)
}

func qualified(table, name string) string {
	return fold(table) + "\x00" + fold(name)
}

// NewCatalog builds the lookup indexes. Tables and members that repeat an
// identity already seen are merged into the first definition.
func NewCatalog(tables []*Table) *Catalog {
	c := &Catalog{
		columnByKey:       make(map[string]int),
		columnsByName:     make(map[string][]int),
		measureByKey:      make(map[string]*Measure),
		measuresByName:    make(map[string][]*Measure),
		hierarchyByKey:    make(map[string]*Hierarchy),
		hierarchiesByName: make(map[string][]*Hierarchy),
	}

	byName := make(map[string]*Table)
	for _, t := range tables {
		merged, ok := byName[fold(t.Name)]
		if !ok {
			merged = &Table{Name: t.Name, IsHidden: t.IsHidden}
			byName[fold(t.Name)] = merged
			c.tables = append(c.tables, merged)
		}

		seen := make(map[string]bool)
		for _, col := range merged.Columns {
			seen[fold(col.Name)] = true
		}
		for _, m := range merged.Measures {
			seen[fold(m.Name)] = true
		}
		for _, col := range t.Columns {
			if seen[fold(col.Name)] {
				continue
			}
			seen[fold(col.Name)] = true
			cp := *col
			cp.Table = merged.Name
			merged.Columns = append(merged.Columns, &cp)
		}
		for _, m := range t.Measures {
			if seen[fold(m.Name)] {
				continue
			}
			seen[fold(m.Name)] = true
			cp := *m
			cp.Table = merged.Name
			merged.Measures = append(merged.Measures, &cp)
		}

		hseen := make(map[string]bool)
		for _, h := range merged.Hierarchies {
			hseen[fold(h.Name)] = true
		}
		for _, h := range t.Hierarchies {
			if hseen[fold(h.Name)] {
				continue
			}
			hseen[fold(h.Name)] = true
			cp := *h
			cp.Table = merged.Name
			merged.Hierarchies = append(merged.Hierarchies, &cp)
		}
	}

	slices.SortFunc(c.tables, func(a, b *Table) int { return cmp.Compare(a.Name, b.Name) })

	for _, t := range c.tables {
		slices.SortFunc(t.Columns, func(a, b *Column) int { return cmp.Compare(a.Name, b.Name) })
		c.columns = append(c.columns, t.Columns...)
		for _, m := range t.Measures {
			c.measureByKey[qualified(t.Name, m.Name)] = m
			c.measuresByName[fold(m.Name)] = append(c.measuresByName[fold(m.Name)], m)
		}
		for _, h := range t.Hierarchies {
			c.hierarchyByKey[qualified(t.Name, h.Name)] = h
			c.hierarchiesByName[fold(h.Name)] = append(c.hierarchiesByName[fold(h.Name)], h)
		}
	}

	for i, col := range c.columns {
		c.columnByKey[qualified(col.Table, col.Name)] = i
		c.columnsByName[fold(col.Name)] = append(c.columnsByName[fold(col.Name)], i)
	}

	return c
}

func (c *Catalog) Tables() []*Table {
	return c.tables
}

// Columns returns every column, ordered by table then name.
func (c *Catalog) Columns() []*Column {
	return c.columns
}

// Column returns the column at index i.
func (c *Catalog) Column(i int) *Column {
	return c.columns[i]
}

func (c *Catalog) Measures() []*Measure {
	var out []*Measure
	for _, t := range c.tables {
		out = append(out, t.Measures...)
	}
	return out
}

// LookupColumn finds a column by its qualified identity.
func (c *Catalog) LookupColumn(table, name string) (int, bool) {
	i, ok := c.columnByKey[qualified(table, name)]
	return i, ok
}

// ColumnsNamed returns the indexes of every column with the given bare name.
func (c *Catalog) ColumnsNamed(name string) []int {
	return c.columnsByName[fold(name)]
}

func (c *Catalog) LookupMeasure(table, name string) (*Measure, bool) {
	m, ok := c.measureByKey[qualified(table, name)]
	return m, ok
}

func (c *Catalog) MeasuresNamed(name string) []*Measure {
	return c.measuresByName[fold(name)]
}

func (c *Catalog) LookupHierarchy(table, name string) (*Hierarchy, bool) {
	h, ok := c.hierarchyByKey[qualified(table, name)]
	return h, ok
}

func (c *Catalog) HierarchiesNamed(name string) []*Hierarchy {
	return c.hierarchiesByName[fold(name)]
}

// HasTable reports whether a table with the given name exists.
func (c *Catalog) HasTable(name string) bool {
	for _, t := range c.tables {
		if fold(t.Name) == fold(name) {
			return true
		}
	}
	return false
}

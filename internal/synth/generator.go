package synth

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/brianvoe/gofakeit/v6"
)

type Options struct {
	Tables      int     // tables per model
	MaxColumns  int     // upper bound of columns per table
	Visuals     int     // visual containers per report
	UsedRatio   float64 // share of columns bound to some visual
	HiddenRatio float64 // share of columns flagged hidden
	Seed        int64   // 0 picks a random seed
}

func (o Options) withDefaults() Options {
	if o.Tables <= 0 {
		o.Tables = 4
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = 8
	}
	if o.Visuals <= 0 {
		o.Visuals = 6
	}
	if o.UsedRatio <= 0 || o.UsedRatio > 1 {
		o.UsedRatio = 0.5
	}
	if o.HiddenRatio < 0 || o.HiddenRatio > 1 {
		o.HiddenRatio = 0.1
	}
	return o
}

// Report is a generated report definition together with the answers an
// analysis of it must produce.
type Report struct {
	ID          string
	Name        string
	ModelID     string
	Schema      map[string]any
	Exploration map[string]any

	Columns []string // every "Table.Column", sorted
	Used    []string // columns referenced by some visual, sorted
	Hidden  int
}

// SchemaJSON and ExplorationJSON render the definition the way the service
// returns it.
func (r Report) SchemaJSON() ([]byte, error) {
	return json.Marshal(r.Schema)
}

func (r Report) ExplorationJSON() ([]byte, error) {
	return json.Marshal(r.Exploration)
}

type Generator struct {
	faker *gofakeit.Faker
	opts  Options
}

func New(opts Options) *Generator {
	opts = opts.withDefaults()
	return &Generator{faker: gofakeit.New(opts.Seed), opts: opts}
}

type genColumn struct {
	table  string
	name   string
	hidden bool
}

func (c genColumn) key() string {
	return c.table + "." + c.name
}

type genTable struct {
	name      string
	columns   []genColumn
	measures  []string
	hierarchy []string // level column names, empty when the table has none
}

// Report generates one report definition.
func (g *Generator) Report() Report {
	f := g.faker
	tables := g.tables()

	var dateTemplate string
	if f.Bool() {
		dateTemplate = "DateTableTemplate_" + f.LetterN(8)
	}

	r := Report{
		ID:      f.UUID(),
		Name:    fmt.Sprintf("%s %s", f.Company(), f.RandomString([]string{"Overview", "Dashboard", "KPIs", "Scorecard"})),
		ModelID: fmt.Sprintf("%d", f.Number(100000, 999999)),
		Schema:  buildSchema(tables, dateTemplate),
	}

	var used []genColumn
	for _, t := range tables {
		for _, c := range t.columns {
			r.Columns = append(r.Columns, c.key())
			if c.hidden {
				r.Hidden++
			}
			if f.Float64Range(0, 1) < g.opts.UsedRatio {
				used = append(used, c)
				r.Used = append(r.Used, c.key())
			}
		}
	}
	slices.Sort(r.Columns)
	slices.Sort(r.Used)

	// Deal the used columns out over the visuals.
	groups := make([][]genColumn, g.opts.Visuals)
	for i, c := range used {
		groups[i%len(groups)] = append(groups[i%len(groups)], c)
	}

	byName := make(map[string]genTable, len(tables))
	for _, t := range tables {
		byName[t.name] = t
	}

	var containers []any
	var bookmarked []any
	for i, cols := range groups {
		config, filters := g.visual(i, cols, byName)
		container := map[string]any{
			"x":       f.Number(0, 1280),
			"y":       f.Number(0, 720),
			"config":  mustJSON(config),
			"filters": mustJSON(filters),
		}
		// Some visuals only exist inside a grouped bookmark.
		if i > 0 && f.Number(0, 4) == 0 {
			config["filters"] = filters
			bookmarked = append(bookmarked, config)
			continue
		}
		containers = append(containers, container)
	}

	reportConfig := map[string]any{"version": "5.43"}
	if len(bookmarked) > 0 {
		vcs := make(map[string]any, len(bookmarked))
		for i, cfg := range bookmarked {
			vcs[fmt.Sprintf("v%d", i)] = cfg
		}
		reportConfig["bookmarks"] = []any{map[string]any{
			"name":        "Bookmark" + f.LetterN(6),
			"displayName": f.BuzzWord(),
			"children": []any{map[string]any{
				"name": "Bookmark" + f.LetterN(6),
				"explorationState": map[string]any{
					"sections": map[string]any{"ReportSection": map[string]any{
						"visualContainerGroups": map[string]any{"g1": map[string]any{
							"children": map[string]any{"g2": map[string]any{"visualContainers": vcs}},
						}},
					}},
				},
			}},
		}}
	}

	r.Exploration = map[string]any{
		"exploration": map[string]any{
			"config": mustJSON(reportConfig),
			"sections": []any{map[string]any{
				"name":             "ReportSection",
				"displayName":      "Page 1",
				"filters":          "[]",
				"visualContainers": containers,
			}},
		},
		"models": []any{map[string]any{"id": r.ModelID}},
	}
	return r
}

func (g *Generator) tables() []genTable {
	f := g.faker
	names := slices.Clone(TableNames)
	f.ShuffleStrings(names)

	var tables []genTable
	for i := 0; i < g.opts.Tables; i++ {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s %d", name, i/len(names)+1)
		}
		t := genTable{name: name}

		seen := make(map[string]bool)
		n := f.Number(1, g.opts.MaxColumns)
		for len(t.columns) < n {
			var stem string
			switch f.Number(0, 2) {
			case 0:
				stem = f.RandomString(SensitiveColumns)
			case 1:
				stem = f.RandomString(DimensionColumns)
			default:
				stem = f.RandomString(FactColumns)
			}
			if seen[stem] {
				stem = fmt.Sprintf("%s %d", stem, len(t.columns)+1)
			}
			seen[stem] = true
			t.columns = append(t.columns, genColumn{
				table:  name,
				name:   stem,
				hidden: f.Float64Range(0, 1) < g.opts.HiddenRatio,
			})
		}

		if f.Bool() {
			t.measures = append(t.measures, f.RandomString(MeasureNames))
		}
		if len(t.columns) >= 2 && f.Bool() {
			t.hierarchy = []string{t.columns[0].name, t.columns[1].name}
		}
		tables = append(tables, t)
	}
	return tables
}

func buildSchema(tables []genTable, dateTemplate string) map[string]any {
	var entities []any
	for _, t := range tables {
		var props []any
		for _, c := range t.columns {
			props = append(props, map[string]any{
				"Name":     c.name,
				"Hidden":   c.hidden,
				"DataType": 2048,
				"Column":   map[string]any{},
			})
		}
		for _, m := range t.measures {
			props = append(props, map[string]any{
				"Name":    m,
				"Measure": map[string]any{"Expression": fmt.Sprintf("COUNTROWS('%s')", t.name)},
			})
		}
		entity := map[string]any{"Name": t.name, "Properties": props}
		if len(t.hierarchy) > 0 {
			var levels []any
			for _, l := range t.hierarchy {
				levels = append(levels, map[string]any{"Name": l, "Column": map[string]any{"Property": l}})
			}
			entity["Hierarchies"] = []any{map[string]any{"Name": t.name + " Hierarchy", "Levels": levels}}
		}
		entities = append(entities, entity)
	}
	if dateTemplate != "" {
		entities = append(entities, map[string]any{
			"Name":       dateTemplate,
			"Hidden":     true,
			"Properties": []any{map[string]any{"Name": "Date", "Hidden": true}},
		})
	}
	return map[string]any{"schemas": []any{map[string]any{"schema": map[string]any{"Entities": entities}}}}
}

// visual builds one container config and its filter list. Every column in
// cols is bound through one of the syntactic forms a real report uses.
func (g *Generator) visual(i int, cols []genColumn, tables map[string]genTable) (map[string]any, []any) {
	f := g.faker

	aliases := make(map[string]string)
	var from []any
	alias := func(table string) string {
		if a, ok := aliases[table]; ok {
			return a
		}
		a := fmt.Sprintf("t%d", len(aliases))
		aliases[table] = a
		from = append(from, map[string]any{"Name": a, "Entity": table, "Type": 0})
		return a
	}

	var selects []any
	var filters []any
	projections := map[string]any{}
	for _, c := range cols {
		src := map[string]any{"SourceRef": map[string]any{"Source": alias(c.table)}}
		column := map[string]any{"Column": map[string]any{"Expression": src, "Property": c.name}}

		switch f.Number(0, 4) {
		case 0:
			selects = append(selects, column)
		case 1:
			selects = append(selects, map[string]any{
				"Aggregation": map[string]any{"Expression": column, "Function": f.Number(0, 5)},
			})
		case 2:
			role := f.RandomString([]string{"Values", "Category", "Series", "Tooltips"})
			projections[role] = append(asSlice(projections[role]), map[string]any{
				"queryRef": fmt.Sprintf("%s(%s)", f.RandomString(AggregateFunctions), c.key()),
			})
		case 3:
			filters = append(filters, map[string]any{
				"name": f.LetterN(10),
				"filter": map[string]any{"Where": []any{map[string]any{"Condition": map[string]any{
					"Comparison": map[string]any{
						"ComparisonKind": 0,
						"Left":           map[string]any{"Column": map[string]any{"Expression": map[string]any{"SourceRef": map[string]any{"Entity": c.table}}, "Property": c.name}},
						"Right":          map[string]any{"Literal": map[string]any{"Value": fmt.Sprintf("'%s'", f.Word())}},
					},
				}}}},
			})
		default:
			t := tables[c.table]
			if slices.Contains(t.hierarchy, c.name) {
				selects = append(selects, map[string]any{"HierarchyLevel": map[string]any{
					"Expression": map[string]any{"Hierarchy": map[string]any{"Expression": src, "Hierarchy": t.name + " Hierarchy"}},
					"Level":      c.name,
				}})
			} else {
				selects = append(selects, map[string]any{"NativeVisualCalculation": map[string]any{
					"Language":   "dax",
					"Expression": fmt.Sprintf("RUNNINGSUM('%s'[%s])", c.table, c.name),
					"Name":       f.BuzzWord(),
				}})
			}
		}

		// Measures sit next to columns but must never mark them used.
		if t := tables[c.table]; len(t.measures) > 0 && f.Bool() {
			selects = append(selects, map[string]any{
				"Measure": map[string]any{"Expression": src, "Property": t.measures[0]},
			})
		}
	}

	config := map[string]any{
		"name": fmt.Sprintf("visual%d%s", i, f.LetterN(4)),
		"singleVisual": map[string]any{
			"visualType":  f.RandomString(VisualTypes),
			"projections": projections,
			"prototypeQuery": map[string]any{
				"Version": 2,
				"From":    from,
				"Select":  selects,
			},
		},
	}
	return config, filters
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("synth: marshal generated value: %v", err))
	}
	return string(b)
}

package analysis

import (
	"encoding/json"
	"log/slog"
	"slices"

	"pb-analyzer/internal/resolve"
	"pb-analyzer/internal/schema"
	"pb-analyzer/internal/usage"
	"pb-analyzer/internal/visual"
)

// Definition is one report's raw internal definition: the decoded
// conceptual schema and the decoded exploration (visual layout) tree.
type Definition struct {
	ReportID   string
	ReportName string
	Schema     any
	Visual     any
}

type SensitiveColumn struct {
	Column  string `json:"column" yaml:"column"`
	Meaning string `json:"meaning" yaml:"meaning"`
}

// Diagnostics never influence the used/unused partition.
type Diagnostics struct {
	References int      `json:"references" yaml:"references"`
	Unresolved []string `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Ambiguous  []string `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
	Anomalies  []string `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
}

type Result struct {
	ReportID          string            `json:"report_id" yaml:"report_id"`
	ReportName        string            `json:"report_name" yaml:"report_name"`
	HiddenColumnCount int               `json:"hidden_column_count" yaml:"hidden_column_count"`
	Tables            []string          `json:"tables" yaml:"tables"`
	AllColumns        []string          `json:"all_columns" yaml:"all_columns"`
	UnusedColumns     []string          `json:"unused_columns" yaml:"unused_columns"`
	MeasureCount      int               `json:"measure_count" yaml:"measure_count"`
	SensitiveUnused   []SensitiveColumn `json:"sensitive_unused,omitempty" yaml:"sensitive_unused,omitempty"`
	Diagnostics       Diagnostics       `json:"diagnostics" yaml:"diagnostics"`
}

type Analyzer struct {
	maxDepth int
	logger   *slog.Logger
}

type Option func(*Analyzer)

// WithMaxDepth bounds report tree nesting; deeper subtrees become anomalies.
func WithMaxDepth(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxDepth = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxDepth: visual.DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAnalyzer = New()

// AnalyzeReport runs the default analyzer.
func AnalyzeReport(def Definition) (*Result, error) {
	return defaultAnalyzer.AnalyzeReport(def)
}

// AnalyzeReport extracts the catalog, collects and resolves every field
// reference of the visual tree, and partitions the catalog's columns into
// used and unused. It fails only when the schema cannot be parsed.
func (a *Analyzer) AnalyzeReport(def Definition) (*Result, error) {
	catalog, err := schema.Extract(def.Schema)
	if err != nil {
		return nil, &AnalysisFailure{
			Kind:       FailureSchemaParse,
			ReportID:   def.ReportID,
			ReportName: def.ReportName,
			Err:        err,
		}
	}
	return a.analyze(def, catalog, nil), nil
}

// AnalyzeJSON is AnalyzeReport over raw bytes. A visual tree that does not
// decode is reported as an anomaly and contributes no references.
func (a *Analyzer) AnalyzeJSON(reportID, reportName string, schemaJSON, visualJSON []byte) (*Result, error) {
	catalog, err := schema.Parse(schemaJSON)
	if err != nil {
		return nil, &AnalysisFailure{Kind: FailureSchemaParse, ReportID: reportID, ReportName: reportName, Err: err}
	}

	def := Definition{ReportID: reportID, ReportName: reportName}
	var anomalies []string
	if len(visualJSON) > 0 {
		if err := json.Unmarshal(visualJSON, &def.Visual); err != nil {
			an := visual.Anomaly{Path: "$", Reason: "exploration is not valid JSON: " + err.Error()}
			a.logger.Warn("report tree anomaly",
				slog.String("report_id", reportID),
				slog.String("path", an.Path),
				slog.String("reason", an.Reason))
			anomalies = append(anomalies, an.Error())
			def.Visual = nil
		}
	}
	return a.analyze(def, catalog, anomalies), nil
}

func (a *Analyzer) analyze(def Definition, catalog *schema.Catalog, anomalies []string) *Result {
	collector := visual.NewCollector(visual.WithMaxDepth(a.maxDepth), visual.WithLogger(a.logger))
	resolver := resolve.New(catalog, a.logger)
	used := usage.NewUsedSet()

	var diag Diagnostics
	unresolved := make(map[string]bool)
	ambiguous := make(map[string]bool)
	for res := range resolver.ResolveAll(collector.Collect(def.Visual)) {
		diag.References++
		switch res.Status {
		case resolve.Unresolved:
			unresolved[res.Ref.String()] = true
		case resolve.Ambiguous:
			ambiguous[res.Ref.String()] = true
		}
		used.Add(res)
	}
	diag.Unresolved = sortedKeys(unresolved)
	diag.Ambiguous = sortedKeys(ambiguous)
	diag.Anomalies = anomalies
	for _, an := range collector.Anomalies() {
		diag.Anomalies = append(diag.Anomalies, an.Error())
	}

	u := usage.Diff(catalog, used)

	result := &Result{
		ReportID:          def.ReportID,
		ReportName:        def.ReportName,
		HiddenColumnCount: u.HiddenCount,
		AllColumns:        usage.Keys(u.All),
		UnusedColumns:     usage.Keys(u.Unused),
		MeasureCount:      len(catalog.Measures()),
		Diagnostics:       diag,
	}
	for _, t := range catalog.Tables() {
		result.Tables = append(result.Tables, t.Name)
	}
	for _, col := range u.Unused {
		if meaning := schema.AnalyzeMeaning(col.Name, ""); schema.IsSensitive(meaning) {
			result.SensitiveUnused = append(result.SensitiveUnused, SensitiveColumn{Column: col.Key(), Meaning: meaning})
		}
	}

	a.logger.Debug("report analyzed",
		slog.String("report_id", def.ReportID),
		slog.Int("columns", len(result.AllColumns)),
		slog.Int("unused", len(result.UnusedColumns)),
		slog.Int("references", diag.References),
		slog.Int("unresolved", len(diag.Unresolved)),
		slog.Int("anomalies", len(diag.Anomalies)),
	)
	return result
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pb-analyzer/internal/analysis"
	"pb-analyzer/internal/engine"
	"pb-analyzer/internal/sink"
	"pb-analyzer/internal/source"
)

var (
	schemaPath      string
	explorationPath string
	definitionsDir  string
	s3Location      string
	outputFormat    string
	analyzeFlags    batchFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze report definitions stored as files",
	Long: `Analyzes report definitions that were saved to disk or to a bucket:

  --schema / --exploration   one conceptual schema and its exploration
  --dir                      every <name>.schema.json (+ <name>.exploration.json)
  --s3 s3://bucket/prefix    the same pairs stored under a bucket prefix`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		src, err := definitionSource(cmd, cfg)
		if err != nil {
			return err
		}
		render, err := renderer(outputFormat)
		if err != nil {
			return err
		}

		items, err := src.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list definitions: %w", err)
		}

		opts := engine.Options{
			Workers:  cfg.Analysis.Workers,
			Timeout:  cfg.Analysis.Timeout,
			Analyzer: newAnalyzer(cfg.Analysis),
			Logger:   logger,
		}
		if analyzeFlags.workers > 0 {
			opts.Workers = analyzeFlags.workers
		}
		if analyzeFlags.timeout > 0 {
			opts.Timeout = analyzeFlags.timeout
		}
		run := engine.Execute(cmd.Context(), src, items, opts, nil)

		if analyzeFlags.output != "" {
			if err := sink.SaveResultsCSV(analyzeFlags.output, run, nil); err != nil {
				return err
			}
		}
		if err := render(cmd.OutOrStdout(), newAnalyzeReport(run)); err != nil {
			return err
		}

		summary := engine.Summarize(run)
		if n := len(summary.Failures); n > 0 {
			return fmt.Errorf("%d of %d reports could not be analyzed", n, summary.Total)
		}
		return nil
	},
}

func definitionSource(cmd *cobra.Command, cfg *Config) (source.Source, error) {
	chosen := 0
	for _, v := range []string{schemaPath, definitionsDir, s3Location} {
		if v != "" {
			chosen++
		}
	}
	if chosen != 1 {
		return nil, fmt.Errorf("exactly one of --schema, --dir or --s3 is required")
	}

	switch {
	case schemaPath != "":
		return source.NewFiles(schemaPath, explorationPath), nil
	case definitionsDir != "":
		return source.NewDir(definitionsDir), nil
	default:
		return source.NewS3(cmd.Context(), cfg.S3, s3Location)
	}
}

type analyzeFailure struct {
	ReportID   string `json:"report_id" yaml:"report_id"`
	ReportName string `json:"report_name" yaml:"report_name"`
	Status     string `json:"status" yaml:"status"`
	Error      string `json:"error" yaml:"error"`
}

type analyzeReport struct {
	RunID    string             `json:"run_id" yaml:"run_id"`
	Results  []*analysis.Result `json:"results" yaml:"results"`
	Failures []analyzeFailure   `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func newAnalyzeReport(run *engine.Run) analyzeReport {
	rep := analyzeReport{RunID: run.ID.String(), Results: []*analysis.Result{}}
	for _, out := range run.Outcomes {
		if out.Result != nil {
			rep.Results = append(rep.Results, out.Result)
			continue
		}
		f := analyzeFailure{ReportID: out.Item.ID, ReportName: out.Item.Name, Status: out.Status}
		if out.Err != nil {
			f.Error = out.Err.Error()
		}
		rep.Failures = append(rep.Failures, f)
	}
	return rep
}

type renderFunc func(w io.Writer, rep analyzeReport) error

func renderer(format string) (renderFunc, error) {
	switch strings.ToLower(format) {
	case "", "table":
		return renderTable, nil
	case "json":
		return func(w io.Writer, rep analyzeReport) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}, nil
	case "yaml", "yml":
		return func(w io.Writer, rep analyzeReport) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(rep); err != nil {
				return err
			}
			return enc.Close()
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func renderTable(w io.Writer, rep analyzeReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPORT\tCOLUMNS\tHIDDEN\tUNUSED\tSENSITIVE\tUNRESOLVED")
	for _, res := range rep.Results {
		name := res.ReportName
		if name == "" {
			name = res.ReportID
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", name, len(res.AllColumns), res.HiddenColumnCount,
			len(res.UnusedColumns), len(res.SensitiveUnused), len(res.Diagnostics.Unresolved))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range rep.Results {
		if len(res.UnusedColumns) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s unused columns:\n", res.ReportID)
		sensitive := make(map[string]string, len(res.SensitiveUnused))
		for _, sc := range res.SensitiveUnused {
			sensitive[sc.Column] = sc.Meaning
		}
		for _, c := range res.UnusedColumns {
			if m, ok := sensitive[c]; ok {
				fmt.Fprintf(w, "  - %s  ⚠ %s\n", c, m)
			} else {
				fmt.Fprintf(w, "  - %s\n", c)
			}
		}
	}

	for _, f := range rep.Failures {
		fmt.Fprintf(w, "\n[!] %s : %s\n    └ Error: %s\n", f.ReportID, f.Status, f.Error)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&schemaPath, "schema", "", "Conceptual schema JSON file")
	analyzeCmd.Flags().StringVar(&explorationPath, "exploration", "", "Exploration (report layout) JSON file")
	analyzeCmd.Flags().StringVar(&definitionsDir, "dir", "", "Directory of <name>.schema.json / <name>.exploration.json pairs")
	analyzeCmd.Flags().StringVar(&s3Location, "s3", "", "Bucket location of definition pairs (s3://bucket/prefix)")
	analyzeCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format: table, json or yaml")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.output, "output", "o", "", "Also write the results CSV to this path")
	analyzeCmd.Flags().IntVarP(&analyzeFlags.workers, "workers", "w", 0, "Definitions analyzed in parallel (overrides config)")
	analyzeCmd.Flags().DurationVar(&analyzeFlags.timeout, "timeout", 0, "Overall time limit (overrides config)")
	analyzeCmd.MarkFlagsMutuallyExclusive("schema", "dir", "s3")
}

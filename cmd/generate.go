package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pb-analyzer/internal/source"
	"pb-analyzer/internal/synth"
)

var (
	genOut     string
	genReports int
	genOpts    synth.Options
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write synthetic report definitions for demos and load tests",
	Long: `Generates random report definitions (schema + exploration pairs) in the
layout "analyze --dir" reads. Each report binds a known share of its columns
to visuals, so the expected unused columns are printed next to each file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if genReports <= 0 {
			return fmt.Errorf("--reports must be positive")
		}
		if err := os.MkdirAll(genOut, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", genOut, err)
		}

		gen := synth.New(genOpts)
		for i := 0; i < genReports; i++ {
			r := gen.Report()

			schemaJSON, err := r.SchemaJSON()
			if err != nil {
				return fmt.Errorf("report %s: %w", r.ID, err)
			}
			explorationJSON, err := r.ExplorationJSON()
			if err != nil {
				return fmt.Errorf("report %s: %w", r.ID, err)
			}

			base := filepath.Join(genOut, r.ID)
			if err := os.WriteFile(base+source.SchemaSuffix, schemaJSON, 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(base+source.ExplorationSuffix, explorationJSON, 0o644); err != nil {
				return err
			}

			fmt.Printf("[✓] [%02d/%02d] %-36s : %d columns, %d unused, %d hidden\n",
				i+1, genReports, r.ID, len(r.Columns), len(r.Columns)-len(r.Used), r.Hidden)
		}

		fmt.Println("--------------------------------------------------")
		fmt.Printf("Wrote %d report definitions to %s\n", genReports, genOut)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&genOut, "out", "definitions", "Output directory")
	generateCmd.Flags().IntVarP(&genReports, "reports", "n", 10, "Number of reports to generate")
	generateCmd.Flags().Int64Var(&genOpts.Seed, "seed", 0, "Random seed (0 = random)")
	generateCmd.Flags().IntVar(&genOpts.Tables, "tables", 0, "Tables per model")
	generateCmd.Flags().IntVar(&genOpts.MaxColumns, "max-columns", 0, "Maximum columns per table")
	generateCmd.Flags().IntVar(&genOpts.Visuals, "visuals", 0, "Visuals per report")
	generateCmd.Flags().Float64Var(&genOpts.UsedRatio, "used-ratio", 0, "Share of columns bound to visuals (0-1)")
	generateCmd.Flags().Float64Var(&genOpts.HiddenRatio, "hidden-ratio", 0.1, "Share of columns flagged hidden (0-1)")
}

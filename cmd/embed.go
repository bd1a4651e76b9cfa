package cmd

import (
	"github.com/spf13/cobra"

	"pb-analyzer/internal/source"
)

var (
	embedFlags     batchFlags
	embedCodesPath string
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Analyze publicly embedded reports from an embed codes export",
	Long: `Reads the embed codes CSV exported from the Power BI admin portal
(Tenant settings > Embed codes) and analyzes every "publish to web" report
through the anonymous public endpoints. No sign-in is needed.

The results CSV keeps the export's columns, replacing the embed URL with
the hidden column count, the unused columns and a status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		client, err := newPowerBIClient(cmd.Context(), cfg.PowerBI, false)
		if err != nil {
			return err
		}

		src := source.NewEmbed(client, embedCodesPath)
		return runBatch(cmd.Context(), cfg, batch{
			tool:    toolEmbed,
			source:  src,
			headers: src.Headers,
			flags:   embedFlags,
		})
	},
}

func init() {
	RootCmd.AddCommand(embedCmd)

	addBatchFlags(embedCmd, &embedFlags)
	embedCmd.Flags().StringVar(&embedCodesPath, "embed-codes", "", "Embed codes CSV exported from the admin portal")
	embedCmd.MarkFlagRequired("embed-codes")
}

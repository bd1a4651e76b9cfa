package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pb-analyzer/internal/source"
)

var (
	orgFlags           batchFlags
	publishedToWebOnly bool
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Analyze reports shared with the whole organization",
	Long: `Lists every report shared through an organization-wide link (and every
report published to the web) with the Power BI admin API, then downloads
each report's semantic model schema and layout and looks for unused columns.

Requires a Power BI administrator. Without --token the device-code sign-in
flow is started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		client, err := newPowerBIClient(cmd.Context(), cfg.PowerBI, true)
		if err != nil {
			return err
		}

		return runBatch(cmd.Context(), cfg, batch{
			tool:   toolOrg,
			source: source.NewOrg(client, publishedToWebOnly),
			flags:  orgFlags,
		})
	},
}

func init() {
	RootCmd.AddCommand(orgCmd)

	addBatchFlags(orgCmd, &orgFlags)
	orgCmd.Flags().String("token", "", "Power BI access token (skips interactive sign-in)")
	orgCmd.Flags().BoolVar(&publishedToWebOnly, "published-to-web-only", false, "Only analyze reports published to the web")

	viper.BindPFlag("powerbi.token", orgCmd.Flags().Lookup("token"))
}

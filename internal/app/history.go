package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved reports",
	Long: `List reports saved with 'battdrain analyze --save' or by the watcher,
newest first.`,
	Example: `  # Show the 20 most recent reports
  battdrain history

  # Show everything
  battdrain history --limit 0`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum reports to list (0 = all)")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("invalid limit: %d (must be >= 0)", historyLimit)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	reports, err := st.ListReports(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	r := output.NewRenderer(cfg.Scoring().Classifier, output.IsColorEnabled())
	fmt.Print(r.History(reports))
	return nil
}

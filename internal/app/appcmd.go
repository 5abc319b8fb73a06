package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/output"
)

var appCmd = &cobra.Command{
	Use:   "app <package>",
	Short: "Show one app's usage across saved reports",
	Long: `Show how much battery a package used in each saved report, and
whether it was flagged, oldest report first.`,
	Example: `  battdrain app com.example.app`,
	Args:    cobra.ExactArgs(1),
	RunE:    runApp,
}

func init() {
	RootCmd.AddCommand(appCmd)
}

func runApp(cmd *cobra.Command, args []string) error {
	pkg := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.GetAppHistory(pkg)
	if err != nil {
		return fmt.Errorf("failed to get history for %s: %w", pkg, err)
	}

	r := output.NewRenderer(cfg.Scoring().Classifier, output.IsColorEnabled())
	fmt.Print(r.AppHistory(pkg, entries))
	return nil
}

package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/output"
	"github.com/blackwell-systems/battdrain/internal/store"
)

var (
	showFormat string
	showTop    int
)

var showCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show a saved report",
	Long: `Re-render a saved report. The ID may be abbreviated to any unique
prefix, as printed by 'battdrain history'.`,
	Example: `  # Show a report
  battdrain show 3f2a9c1e

  # Export it as YAML
  battdrain show --format yaml 3f2a9c1e`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Delete a saved report",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", output.FormatTable, "output format: table, json, yaml")
	showCmd.Flags().IntVar(&showTop, "top", 0, "limit usage chart rows (0 = all)")

	RootCmd.AddCommand(showCmd)
	RootCmd.AddCommand(deleteCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if !output.ValidFormat(showFormat) {
		return fmt.Errorf("invalid format: %s (must be table, json or yaml)", showFormat)
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

	rep, err := st.GetReport(args[0])
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			return fmt.Errorf("no report matches %q\nRun 'battdrain history' to list saved reports", args[0])
		}
		return fmt.Errorf("failed to load report: %w", err)
	}

	if showFormat == output.FormatTable {
		fmt.Printf("Report %s (analyzed %s)\n", rep.ID, rep.GeneratedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return printReports(cfg, []*analyzer.Report{rep}, showFormat, showTop)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.ResolveID(args[0])
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			return fmt.Errorf("no report matches %q", args[0])
		}
		return err
	}
	if err := st.DeleteReport(id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	fmt.Printf("Deleted report %s\n", id)
	return nil
}

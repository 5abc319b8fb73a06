package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/config"
	"github.com/blackwell-systems/battdrain/internal/output"
)

var (
	analyzeFormat string
	analyzeSave   bool
	analyzeTop    int

	systemThreshold float64
	tpThreshold     float64
	ratioThreshold  float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dump>...",
	Short: "Analyze checkin dumps for battery drain",
	Long: `Parse one or more battery checkin dumps and report per-app usage,
wakeup and wakelock totals, and apps whose usage is high relative to their
foreground time.

An app is flagged when its usage is above the threshold for its class
(third-party apps, whose names start with "com.", use the lower
third-party threshold) and its foreground/usage ratio is below the ratio
threshold. Whitelisted system components are never flagged.

Several dumps are analyzed concurrently and independently.`,
	Example: `  # Analyze a dump
  battdrain analyze dump.csv

  # Only show the 10 heaviest apps in the usage chart
  battdrain analyze --top 10 dump.csv

  # Stricter third-party threshold, JSON output
  battdrain analyze --tp-threshold 10 --format json dump.csv

  # Analyze and keep in history
  battdrain analyze --save dump-monday.csv dump-tuesday.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", output.FormatTable, "output format: table, json, yaml")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "save reports to history")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "limit usage chart rows (0 = all)")
	addThresholdFlags(analyzeCmd)

	RootCmd.AddCommand(analyzeCmd)
}

// addThresholdFlags registers the threshold override flags on cmd.
func addThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&systemThreshold, "system-threshold", analyzer.DefaultSystemThreshold, "usage threshold for non third-party apps")
	cmd.Flags().Float64Var(&tpThreshold, "tp-threshold", analyzer.DefaultThirdPartyThreshold, "usage threshold for third-party apps")
	cmd.Flags().Float64Var(&ratioThreshold, "ratio-threshold", analyzer.DefaultRatioThreshold, "foreground/usage ratio below which usage is suspicious")
}

// applyThresholdFlags copies explicitly set threshold flags over cfg.
func applyThresholdFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("system-threshold") {
		cfg.Thresholds.SystemUsage = systemThreshold
	}
	if cmd.Flags().Changed("tp-threshold") {
		cfg.Thresholds.ThirdPartyUsage = tpThreshold
	}
	if cmd.Flags().Changed("ratio-threshold") {
		cfg.Thresholds.ForegroundRatio = ratioThreshold
	}
	return cfg.Validate()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if !output.ValidFormat(analyzeFormat) {
		return fmt.Errorf("invalid format: %s (must be table, json or yaml)", analyzeFormat)
	}
	if analyzeTop < 0 {
		return fmt.Errorf("invalid top: %d (must be >= 0)", analyzeTop)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyThresholdFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	a, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var done func(analyzer.FileResult)
	var progress *output.ProgressBar
	if len(args) > 1 && analyzeFormat == output.FormatTable {
		progress = output.NewProgress(len(args), "Analyzing dumps...")
		done = func(analyzer.FileResult) { progress.Increment() }
	}

	results := a.AnalyzeFiles(ctx, args, done)
	if progress != nil {
		progress.Finish()
	}

	var reports []*analyzer.Report
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Error: %v\n", res.Err)
			continue
		}
		reports = append(reports, res.Report)
	}

	if analyzeSave && len(reports) > 0 {
		if err := saveReports(cfg, reports); err != nil {
			return err
		}
	}

	if err := printReports(cfg, reports, analyzeFormat, analyzeTop); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d dumps could not be analyzed", failed, len(args))
	}
	return nil
}

// saveReports persists reports and fills in their IDs.
func saveReports(cfg *config.Config, reports []*analyzer.Report) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, r := range reports {
		id, err := st.SaveReport(r)
		if err != nil {
			return fmt.Errorf("failed to save report for %s: %w", r.Source, err)
		}
		r.ID = id
		fmt.Fprintf(os.Stderr, "Saved report %s (%s)\n", id, r.Source)
	}
	return nil
}

// printReports writes reports to stdout in the requested format.
func printReports(cfg *config.Config, reports []*analyzer.Report, format string, top int) error {
	switch format {
	case output.FormatJSON:
		if len(reports) == 0 {
			return nil
		}
		return output.WriteJSON(os.Stdout, reports...)
	case output.FormatYAML:
		return output.WriteYAML(os.Stdout, reports...)
	}

	r := output.NewRenderer(cfg.Scoring().Classifier, output.IsColorEnabled())
	for i, rep := range reports {
		if len(reports) > 1 {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("==> %s <==\n", rep.Source)
		}
		fmt.Print(r.Report(rep, top))
	}
	return nil
}

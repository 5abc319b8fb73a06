package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/config"
	"github.com/blackwell-systems/battdrain/internal/store"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	// RootCmd is the root command for battdrain
	RootCmd = &cobra.Command{
		Use:   "battdrain",
		Short: "Find apps draining the battery from checkin dumps",
		Long: `battdrain parses battery checkin dumps (the comma-separated output of
'dumpsys batterystats --checkin') and flags apps whose battery usage is high
while they spent little time in the foreground.

Attribution is heuristic: a flagged app is a candidate for investigation,
not a confirmed culprit.

Quick Start:
  1. adb shell dumpsys batterystats --checkin > dump.csv
  2. battdrain analyze dump.csv
  3. battdrain analyze --save dump.csv   # keep it in history

Features:
  • UTF-8 and UTF-16 dumps, detected automatically
  • Shared uid usage split across the packages that own the uid
  • Configurable thresholds, whitelist and system prefixes
  • Report history with per-app trends
  • Inbox watcher that analyzes dumps as they arrive

Examples:
  # Analyze a dump
  battdrain analyze dump.csv

  # Machine-readable output
  battdrain analyze --format json dump.csv

  # List saved reports
  battdrain history

  # Track one app across reports
  battdrain app com.example.app

  # Analyze every dump dropped into a directory
  battdrain watch --daemon ~/dumps`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(os.Stderr, logLevel())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("battdrain: battery drain analysis for checkin dumps")
			fmt.Println()
			fmt.Println("Run 'battdrain analyze <dump>' to analyze a dump.")
			fmt.Println("Run 'battdrain --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: store.path or ~/.battdrain/battdrain.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml or ~/.config/battdrain/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// logLevel returns the log level selected by --verbose. Only warnings and
// errors are shown by default.
func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// setupLogging installs the default slog logger.
func setupLogging(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadConfig loads the configuration named by --config, or the default one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newAnalyzer builds the analysis pipeline from cfg, including the uid
// associations from the identities file in the config directory.
func newAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	encs, err := cfg.Encodings()
	if err != nil {
		return nil, err
	}
	a := analyzer.New(cfg.Scoring(), encs...)

	dir, err := config.Dir()
	if err != nil {
		return a, nil
	}
	identities, err := config.LoadIdentities(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}
	if len(identities) > 0 {
		slog.Debug("loaded identities", "uids", len(identities))
		a.WithIdentities(identities)
	}
	return a, nil
}

// openStore opens the report database and makes sure the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	path, err := getDBPath(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return st, nil
}

// getDBPath returns the database path: the --db flag, then store.path from
// the config, then ~/.battdrain/battdrain.db.
func getDBPath(cfg *config.Config) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if cfg != nil && cfg.Store.Path != "" {
		return cfg.Store.Path, nil
	}

	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "battdrain.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}

// getDataDir returns ~/.battdrain, creating it if needed.
func getDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".battdrain")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create battdrain directory: %w", err)
	}
	return dir, nil
}

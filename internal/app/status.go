package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/store"
	"github.com/blackwell-systems/battdrain/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watcher and history status",
	Long: `Display the state of the inbox watcher daemon and the report database.

Shows:
  • Watcher daemon running status and PID
  • Database location and size
  • Number of saved reports and when the last one was analyzed`,
	Example: `  battdrain status`,
	Args:    cobra.NoArgs,
	RunE:    runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := watchPIDFile
	if pidFile == "" {
		pidFile, err = getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get PID file path: %w", err)
		}
	}

	path, err := getDBPath(cfg)
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	const label = "%-10s"

	fmt.Println()
	if running {
		since := "unknown"
		if fi, err := os.Stat(pidFile); err == nil {
			since = humanize.Time(fi.ModTime())
		}
		pid, _ := os.ReadFile(pidFile)
		fmt.Printf(label+"running (since %s, PID %s)\n", "Watcher:", since, strings.TrimSpace(string(pid)))
	} else {
		fmt.Printf(label+"stopped  (run 'battdrain watch --daemon <dir>')\n", "Watcher:")
	}

	fi, err := os.Stat(path)
	if err != nil {
		fmt.Printf(label+"%s (not created yet)\n", "Database:", path)
		fmt.Printf(label+"none  (run 'battdrain analyze --save <dump>')\n", "Reports:")
		fmt.Println()
		return nil
	}
	fmt.Printf(label+"%s (%s)\n", "Database:", path, humanize.Bytes(uint64(fi.Size())))

	st, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	reports, err := st.ListReports(0)
	if err != nil && !errors.Is(err, store.ErrNotInitialized) {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(reports) == 0 {
		fmt.Printf(label+"none  (run 'battdrain analyze --save <dump>')\n", "Reports:")
	} else {
		latest := reports[0]
		fmt.Printf(label+"%d saved · last %s (%s)\n", "Reports:", len(reports), formatSince(latest.CreatedAt), latest.Source)
	}

	fmt.Println()
	return nil
}

func formatSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

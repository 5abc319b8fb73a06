package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/battdrain/internal/config"
	"github.com/blackwell-systems/battdrain/internal/output"
	"github.com/blackwell-systems/battdrain/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool

	watchCmd = &cobra.Command{
		Use:   "watch [dir]",
		Short: "Analyze dumps as they arrive in an inbox directory",
		Long: `Watch an inbox directory and analyze every checkin dump written to it.

Dumps already in the directory are analyzed at startup. New files are
analyzed once they have stopped changing for the debounce window
(watch.debounce, default 2s). Every report is saved to history, and a file
is analyzed again only when its content changes.

The directory defaults to watch.inbox from the config.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  battdrain watch ~/dumps

  # Run as background daemon
  battdrain watch --daemon ~/dumps

  # Stop running daemon
  battdrain watch --stop

  # Use custom PID and log files
  battdrain watch --daemon --pid-file /tmp/watch.pid --log-file /tmp/watch.log ~/dumps`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.battdrain/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.battdrain/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	if watchStop {
		return stopWatchDaemon()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	inbox, err := resolveInbox(cfg, args)
	if err != nil {
		return err
	}

	if watchDaemon {
		return startWatchDaemon(cfg, inbox)
	}

	a, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := watcher.New(a, st, inbox, cfg.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if watchDaemonChild {
		return runWatchDaemonChild(w)
	}

	return runWatchForeground(w)
}

// resolveInbox returns the absolute inbox path from the argument or the
// watch.inbox config key.
func resolveInbox(cfg *config.Config, args []string) (string, error) {
	dir := cfg.Watch.Inbox
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return "", fmt.Errorf("no inbox directory given\nPass one as an argument or set watch.inbox in the config")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve inbox path: %w", err)
	}
	return abs, nil
}

func stopWatchDaemon() error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(cfg *config.Config, inbox string) error {
	dbFile, err := getDBPath(cfg)
	if err != nil {
		return err
	}

	childArgs := daemonChildArgs(inbox, dbFile)

	spinner := output.NewSpinner("Starting daemon")
	spinner.Start()
	if err := watcher.StartDaemon(watchPIDFile, watchLogFile, childArgs); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nWatching %s\n", inbox)
	fmt.Printf("  PID file: %s\n", watchPIDFile)
	fmt.Printf("  Log file: %s\n", watchLogFile)
	fmt.Printf("\nTo stop: battdrain watch --stop\n")

	return nil
}

// daemonChildArgs builds the command line the daemon child is started with.
// Paths are passed explicitly so the child does not depend on the parent's
// working directory.
func daemonChildArgs(inbox, dbFile string) []string {
	args := []string{"watch", inbox, "--db", dbFile, "--pid-file", watchPIDFile}
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			args = append(args, "--config", abs)
		}
	}
	if verbose {
		args = append(args, "--verbose")
	}
	return args
}

func runWatchDaemonChild(w *watcher.Watcher) error {
	// stdout and stderr are redirected to the log file; log processed dumps.
	if !verbose {
		setupLogging(os.Stderr, slog.LevelInfo)
	}
	return w.RunDaemon(watchPIDFile)
}

func runWatchForeground(w *watcher.Watcher) error {
	fmt.Printf("Watching %s (press Ctrl+C to stop)...\n", w.Dir())
	fmt.Println()

	w.OnProcessed = printOutcome

	spinner := output.NewSpinner("Processing existing dumps")
	spinner.Start()
	if err := w.Start(); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher started")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	fmt.Println("✓ Watcher stopped")

	return nil
}

// printOutcome prints one line per processed dump in foreground mode.
func printOutcome(o watcher.Outcome) {
	name := filepath.Base(o.Path)
	if o.Err != nil {
		fmt.Printf("✗ %s: %v\n", name, o.Err)
		return
	}
	fmt.Printf("✓ %s: %d suspicious, heuristic score %.2f (report %s)\n",
		name, len(o.Report.Suspicious), o.Report.HeuristicScore, shortReportID(o.ReportID))
}

func shortReportID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

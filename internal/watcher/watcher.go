package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/store"
)

// ledgerName is the file in the inbox that records processed dumps.
const ledgerName = ".battdrain-processed"

// Outcome describes one processed dump.
type Outcome struct {
	Path     string
	ReportID string // empty when the report was not saved
	Report   *analyzer.Report
	Err      error
}

// Watcher analyzes checkin dumps dropped into an inbox directory.
// Files present at startup are processed immediately; afterwards fsnotify
// Create and Write events are debounced so a file is analyzed once it has
// stopped changing.
type Watcher struct {
	analyzer *analyzer.Analyzer
	store    *store.Store
	dir      string
	debounce time.Duration
	ledger   *ledger

	// OnProcessed, if set, is called from the watcher goroutine after each
	// dump is analyzed.
	OnProcessed func(Outcome)

	fsw     *fsnotify.Watcher
	pending map[string]time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Watcher for dir. st may be nil, in which case reports are
// analyzed but not saved.
func New(a *analyzer.Analyzer, st *store.Store, dir string, debounce time.Duration) (*Watcher, error) {
	if a == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if debounce < 0 {
		return nil, fmt.Errorf("debounce cannot be negative: %s", debounce)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", dir)
	}

	led, err := loadLedger(filepath.Join(dir, ledgerName))
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	return &Watcher{
		analyzer: a,
		store:    st,
		dir:      dir,
		debounce: debounce,
		ledger:   led,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}, nil
}

// Dir returns the watched inbox directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start processes the dumps already in the inbox and then begins watching
// it for new ones.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	// Subscribe before the initial scan so files written during it are not missed.
	w.ProcessExisting()

	w.wg.Add(1)
	go w.run()

	return nil
}

// Stop halts the watcher. Dumps still waiting for their debounce window
// are processed before Stop returns. Calls after the first are no-ops.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()

		if w.fsw != nil {
			if cerr := w.fsw.Close(); cerr != nil {
				err = fmt.Errorf("failed to close fsnotify watcher: %w", cerr)
			}
		}
	})
	return err
}

// ProcessExisting analyzes every dump in the inbox that has not been
// processed in its current form.
func (w *Watcher) ProcessExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Error("failed to list inbox", "dir", w.dir, "error", err)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		w.process(filepath.Join(w.dir, name))
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.pending[ev.Name] = time.Now()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", "dir", w.dir, "error", err)
		case now := <-ticker.C:
			w.flush(now, false)
		case <-w.stopCh:
			w.flush(time.Now(), true)
			return
		}
	}
}

// flush processes pending files whose last event is older than the debounce
// window, or all of them when force is set.
func (w *Watcher) flush(now time.Time, force bool) {
	var ready []string
	for path, last := range w.pending {
		if force || now.Sub(last) >= w.debounce {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	for _, path := range ready {
		delete(w.pending, path)
		w.process(path)
	}
}

// process analyzes a single file unless it is hidden, not a regular file,
// or unchanged since it was last processed.
func (w *Watcher) process(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	fp := fingerprintOf(info)
	if w.ledger.seen(name, fp) {
		slog.Debug("skipping already processed dump", "file", name)
		return
	}

	out := Outcome{Path: path}
	out.Report, out.Err = w.analyzer.AnalyzeFile(path)
	if out.Err == nil && w.store != nil {
		out.ReportID, out.Err = w.store.SaveReport(out.Report)
	}

	if out.Err != nil {
		slog.Warn("failed to process dump", "file", name, "error", out.Err)
	} else {
		slog.Info("processed dump", "file", name, "report", out.ReportID,
			"flagged", len(out.Report.Suspicious), "heuristic_score", out.Report.HeuristicScore)
	}

	// Failed dumps are recorded too; they are retried once their content changes.
	if err := w.ledger.record(name, fp); err != nil {
		slog.Error("failed to update ledger", "file", name, "error", err)
	}

	if w.OnProcessed != nil {
		w.OnProcessed(out)
	}
}

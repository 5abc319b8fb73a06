// Package watcher analyzes checkin dumps as they land in an inbox directory.
//
// Dumps already in the inbox are processed at startup. New or rewritten
// files are picked up through fsnotify and analyzed once they have been
// quiet for the debounce window, so a dump copied in several writes is
// read only when complete. Each report is saved to the store.
//
// A ledger file (.battdrain-processed) in the inbox records the size and
// modification time of every processed file, so restarting the watcher does
// not re-analyze unchanged dumps.
//
// Example usage:
//
//	st, err := store.New("~/.battdrain/battdrain.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	w, err := watcher.New(analyzer.New(analyzer.DefaultConfig()), st, inbox, 2*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Start watching in foreground
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
//
//	// Or start as daemon
//	if err := watcher.StartDaemon("/tmp/battdrain.pid", "/tmp/battdrain.log", []string{"watch", inbox}); err != nil {
//		log.Fatal(err)
//	}
package watcher

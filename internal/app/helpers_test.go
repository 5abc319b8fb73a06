package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/store"
)

const sampleDump = `9,0,i,uid,1000,com.example.app
9,1000,l,pwi,uid,500,5,0,0
9,0,i,wr,3
9,0,i,kwl,2
`

// isolate points HOME, the config dir and the database at temp locations
// and restores the command globals when the test ends.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	oldDB, oldConfig, oldVerbose := dbPath, configPath, verbose
	oldFormat, oldSave, oldTop := analyzeFormat, analyzeSave, analyzeTop
	oldShowFormat, oldShowTop, oldLimit := showFormat, showTop, historyLimit
	oldPID, oldLog := watchPIDFile, watchLogFile
	t.Cleanup(func() {
		dbPath, configPath, verbose = oldDB, oldConfig, oldVerbose
		analyzeFormat, analyzeSave, analyzeTop = oldFormat, oldSave, oldTop
		showFormat, showTop, historyLimit = oldShowFormat, oldShowTop, oldLimit
		watchPIDFile, watchLogFile = oldPID, oldLog
	})

	dbPath = filepath.Join(home, "test.db")
	configPath = ""
	return home
}

func writeDump(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}
	return path
}

// saveSample stores a report analyzed from sampleDump and returns its ID.
func saveSample(t *testing.T, source string) string {
	t.Helper()
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	path := writeDump(t, t.TempDir(), source, sampleDump)
	rep, err := analyzer.New(analyzer.DefaultConfig()).AnalyzeFile(path)
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	rep.GeneratedAt = time.Now().Add(-time.Hour)

	id, err := st.SaveReport(rep)
	if err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	return id
}

// captureStdout replaces os.Stdout with a pipe during f(), then restores it
// and returns all bytes written to stdout.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		done <- buf.String()
	}()

	f()

	w.Close()
	return <-done
}

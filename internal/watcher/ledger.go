package watcher

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// fingerprint identifies one version of a file's content.
type fingerprint struct {
	size    int64
	modTime int64 // unix nanoseconds
}

func fingerprintOf(info os.FileInfo) fingerprint {
	return fingerprint{size: info.Size(), modTime: info.ModTime().UnixNano()}
}

// ledger remembers which inbox files have been processed.
//
// File format (one entry per line):
//
//	<size>,<mtime_unix_nano>,<file name>
type ledger struct {
	path    string
	entries map[string]fingerprint
}

// loadLedger reads the ledger at path. A missing file yields an empty ledger;
// malformed lines are ignored.
func loadLedger(path string) (*ledger, error) {
	l := &ledger{path: path, entries: make(map[string]fingerprint)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, fp, ok := parseLedgerLine(scanner.Text())
		if ok {
			l.entries[name] = fp
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return l, nil
}

func parseLedgerLine(line string) (string, fingerprint, bool) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 || parts[2] == "" {
		return "", fingerprint{}, false
	}
	size, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "", fingerprint{}, false
	}
	mod, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fingerprint{}, false
	}
	return parts[2], fingerprint{size: size, modTime: mod}, true
}

func (l *ledger) seen(name string, fp fingerprint) bool {
	got, ok := l.entries[name]
	return ok && got == fp
}

// record stores fp for name and rewrites the ledger via a temp-file rename
// so a crash never leaves it half written.
func (l *ledger) record(name string, fp fingerprint) error {
	l.entries[name] = fp

	names := make([]string, 0, len(l.entries))
	for n := range l.entries {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		e := l.entries[n]
		fmt.Fprintf(&sb, "%d,%d,%s\n", e.size, e.modTime, n)
	}

	tmpPath := filepath.Join(filepath.Dir(l.path), ".ledger.tmp")
	if err := os.WriteFile(tmpPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("rename ledger: %w", err)
	}
	return nil
}

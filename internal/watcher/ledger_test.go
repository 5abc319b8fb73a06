package watcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedger_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ledgerName)

	l, err := loadLedger(path)
	if err != nil {
		t.Fatalf("loadLedger() on missing file error = %v", err)
	}
	if len(l.entries) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(l.entries))
	}

	fp := fingerprint{size: 42, modTime: 1700000000000000000}
	if err := l.record("dump, with comma.csv", fp); err != nil {
		t.Fatalf("record() error = %v", err)
	}

	reloaded, err := loadLedger(path)
	if err != nil {
		t.Fatalf("loadLedger() error = %v", err)
	}
	if !reloaded.seen("dump, with comma.csv", fp) {
		t.Error("recorded entry not found after reload")
	}
	if reloaded.seen("dump, with comma.csv", fingerprint{size: 43, modTime: fp.modTime}) {
		t.Error("different fingerprint reported as seen")
	}
}

func TestParseLedgerLine(t *testing.T) {
	tests := []struct {
		line   string
		wantOK bool
		name   string
	}{
		{"10,20,a.csv", true, "a.csv"},
		{"10,20,a,b.csv", true, "a,b.csv"},
		{"10,20,", false, ""},
		{"x,20,a.csv", false, ""},
		{"10,y,a.csv", false, ""},
		{"garbage", false, ""},
	}

	for _, tt := range tests {
		name, _, ok := parseLedgerLine(tt.line)
		if ok != tt.wantOK || name != tt.name {
			t.Errorf("parseLedgerLine(%q) = (%q, %v), want (%q, %v)", tt.line, name, ok, tt.name, tt.wantOK)
		}
	}
}

func TestLoadLedger_IgnoresMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ledgerName)
	if err := os.WriteFile(path, []byte("bad\n5,6,ok.csv\n"), 0600); err != nil {
		t.Fatal(err)
	}

	l, err := loadLedger(path)
	if err != nil {
		t.Fatalf("loadLedger() error = %v", err)
	}
	if !l.seen("ok.csv", fingerprint{size: 5, modTime: 6}) {
		t.Error("valid line not loaded")
	}
	if len(l.entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(l.entries))
	}
}

package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/blackwell-systems/battdrain/internal/checkin"
)

const exampleDump = `9,0,i,uid,1000,com.example.app
9,1000,l,pwi,uid,500,5,0,0
9,0,i,wr,3
9,0,i,kwl,2
`

func writeDump(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}
	return path
}

func TestAnalyze_EndToEnd(t *testing.T) {
	res, err := checkin.Parse([]byte(exampleDump), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	report := New(DefaultConfig()).Analyze(res.Entries)

	if len(report.Usage) != 1 || report.Usage["com.example.app"] != 500 {
		t.Errorf("expected usage {com.example.app: 500}, got %v", report.Usage)
	}
	if len(report.Foreground) != 1 || report.Foreground["com.example.app"] != 0 {
		t.Errorf("expected foreground {com.example.app: 0}, got %v", report.Foreground)
	}
	if report.Wakeups != 3 || report.Wakelocks != 2 {
		t.Errorf("expected 3 wakeups / 2 wakelocks, got %d / %d", report.Wakeups, report.Wakelocks)
	}
	if len(report.Suspicious) != 1 {
		t.Fatalf("expected 1 suspicious app, got %d", len(report.Suspicious))
	}
	if got := report.Suspicious[0]; got.App != "com.example.app" || math.Abs(got.Score-48.0) > 1e-9 {
		t.Errorf("unexpected suspicious app: %+v", got)
	}
	if math.Abs(report.HeuristicScore-10.05) > 1e-9 {
		t.Errorf("expected heuristic score 10.05, got %v", report.HeuristicScore)
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	report := New(DefaultConfig()).Analyze(nil)

	if len(report.Usage) != 0 || len(report.Suspicious) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if report.HeuristicScore != 0 {
		t.Errorf("expected heuristic score 0, got %v", report.HeuristicScore)
	}
}

func TestAnalyze_CountlessRowsCountOnce(t *testing.T) {
	res, err := checkin.Parse([]byte("9,0,i,wr\n9,0,i,kwl\n9,0,i,wr,3\n"), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	report := New(DefaultConfig()).Analyze(res.Entries)

	if report.Wakeups != 4 || report.Wakelocks != 1 {
		t.Errorf("expected 4 wakeups / 1 wakelock, got %d / %d", report.Wakeups, report.Wakelocks)
	}
	if math.Abs(report.HeuristicScore-0.05) > 1e-9 {
		t.Errorf("expected heuristic score 0.05, got %v", report.HeuristicScore)
	}
}

func TestAnalyze_NonFiniteUsage(t *testing.T) {
	dump := "9,0,l,pwi,com.a,nan,0\n9,0,l,pwi,com.b,inf,0\n"
	res, err := checkin.Parse([]byte(dump), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	report := New(DefaultConfig()).Analyze(res.Entries)

	for app, used := range report.Usage {
		if math.IsNaN(used) || math.IsInf(used, 0) {
			t.Errorf("usage for %s is not finite: %v", app, used)
		}
	}
	if len(report.Suspicious) != 0 {
		t.Errorf("expected no suspicious apps, got %+v", report.Suspicious)
	}
	if _, err := json.Marshal(report); err != nil {
		t.Errorf("report does not encode as JSON: %v", err)
	}
}

func TestAnalyzeFile(t *testing.T) {
	path := writeDump(t, t.TempDir(), "dump.csv", exampleDump)

	report, err := New(DefaultConfig()).AnalyzeFile(path)
	if err != nil {
		t.Fatalf("AnalyzeFile failed: %v", err)
	}

	if report.Source != "dump.csv" {
		t.Errorf("expected source dump.csv, got %s", report.Source)
	}
	if report.Encoding != "utf-8-sig" {
		t.Errorf("expected encoding utf-8-sig, got %s", report.Encoding)
	}
	if report.Rows != 4 {
		t.Errorf("expected 4 rows, got %d", report.Rows)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("expected GeneratedAt to be set")
	}
}

func TestAnalyzeFile_CustomThresholds(t *testing.T) {
	path := writeDump(t, t.TempDir(), "dump.csv", exampleDump)

	cfg := DefaultConfig()
	cfg.Thresholds.ThirdPartyUsage = 500

	report, err := New(cfg).AnalyzeFile(path)
	if err != nil {
		t.Fatalf("AnalyzeFile failed: %v", err)
	}
	if len(report.Suspicious) != 0 {
		t.Errorf("usage equal to threshold must not flag, got %+v", report.Suspicious)
	}
	if math.Abs(report.HeuristicScore-0.05) > 1e-9 {
		t.Errorf("expected heuristic score 0.05, got %v", report.HeuristicScore)
	}
}

func TestAnalyzeFiles_Isolated(t *testing.T) {
	dir := t.TempDir()
	good := writeDump(t, dir, "good.csv", exampleDump)
	other := writeDump(t, dir, "other.csv", "9,0,i,pwi,com.other,90,0\n9,0,i,wr,100\n")
	broken := writeDump(t, dir, "broken.csv", string([]byte{0xFF, 0xFE, 0x41}))
	missing := filepath.Join(dir, "missing.csv")

	var finished atomic.Int32

	results := New(DefaultConfig()).AnalyzeFiles(context.Background(), []string{good, broken, other, missing}, func(FileResult) {
		finished.Add(1)
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if finished.Load() != 4 {
		t.Errorf("expected 4 completion callbacks, got %d", finished.Load())
	}
	if results[0].Err != nil || results[0].Report.Usage["com.example.app"] != 500 {
		t.Errorf("unexpected result for good dump: %+v", results[0])
	}

	var decErr *checkin.DecodeError
	if !errors.As(results[1].Err, &decErr) {
		t.Errorf("expected decode error for broken dump, got %v", results[1].Err)
	}

	if results[2].Err != nil {
		t.Fatalf("unexpected error for other dump: %v", results[2].Err)
	}
	if _, ok := results[2].Report.Usage["com.example.app"]; ok {
		t.Error("state leaked between dumps")
	}
	if results[2].Report.Wakeups != 100 {
		t.Errorf("expected 100 wakeups, got %d", results[2].Report.Wakeups)
	}

	if results[3].Err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAnalyzeFiles_CancelledContext(t *testing.T) {
	path := writeDump(t, t.TempDir(), "dump.csv", exampleDump)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := New(DefaultConfig()).AnalyzeFiles(ctx, []string{path}, nil)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].Err)
	}
}

func TestAnalyze_WithIdentities(t *testing.T) {
	// The dump has no uid rows, so usage for uid 10077 is only attributable
	// through the registered identity.
	res, err := checkin.Parse([]byte("9,10077,l,pwi,uid,120,0,0,0\n"), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	plain := New(DefaultConfig()).Analyze(res.Entries)
	if len(plain.Usage) != 0 {
		t.Errorf("expected unattributable usage to be dropped, got %v", plain.Usage)
	}

	a := New(DefaultConfig()).WithIdentities(map[string][]string{"10077": {"com.tracker"}})
	report := a.Analyze(res.Entries)
	if report.Usage["com.tracker"] != 120 {
		t.Errorf("expected com.tracker usage 120, got %v", report.Usage)
	}
	if len(report.Suspicious) != 1 || report.Suspicious[0].App != "com.tracker" {
		t.Errorf("expected com.tracker to be flagged, got %+v", report.Suspicious)
	}
}

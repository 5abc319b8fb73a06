package app

import (
	"strings"
	"testing"
)

func TestHistoryCommand_FlagDefaults(t *testing.T) {
	flag := historyCmd.Flags().Lookup("limit")
	if flag == nil {
		t.Fatal("limit flag not found")
	}
	if flag.DefValue != "20" {
		t.Errorf("limit flag default: got %s, want 20", flag.DefValue)
	}
}

func TestRunHistory(t *testing.T) {
	isolate(t)

	out := captureStdout(t, func() {
		if err := runHistory(historyCmd, nil); err != nil {
			t.Errorf("runHistory() error = %v", err)
		}
	})
	if !strings.Contains(out, "No saved reports") {
		t.Errorf("expected empty history message, got %q", out)
	}

	id := saveSample(t, "monday.csv")
	out = captureStdout(t, func() {
		if err := runHistory(historyCmd, nil); err != nil {
			t.Errorf("runHistory() error = %v", err)
		}
	})
	for _, want := range []string{id[:8], "monday.csv", "10.05"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q\n%s", want, out)
		}
	}
}

func TestRunHistory_InvalidLimit(t *testing.T) {
	isolate(t)
	historyLimit = -1
	if err := runHistory(historyCmd, nil); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestRunShow(t *testing.T) {
	isolate(t)
	id := saveSample(t, "monday.csv")

	out := captureStdout(t, func() {
		if err := runShow(showCmd, []string{id[:8]}); err != nil {
			t.Errorf("runShow() error = %v", err)
		}
	})
	for _, want := range []string{"Report " + id, "com.example.app", "Heuristic score: 10.05"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q\n%s", want, out)
		}
	}
}

func TestRunShow_NotFound(t *testing.T) {
	isolate(t)
	saveSample(t, "monday.csv")

	err := runShow(showCmd, []string{"zzzzzzzz"})
	if err == nil || !strings.Contains(err.Error(), "no report matches") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestRunDelete(t *testing.T) {
	isolate(t)
	id := saveSample(t, "monday.csv")

	out := captureStdout(t, func() {
		if err := runDelete(deleteCmd, []string{id}); err != nil {
			t.Errorf("runDelete() error = %v", err)
		}
	})
	if !strings.Contains(out, "Deleted report "+id) {
		t.Errorf("unexpected output %q", out)
	}

	if err := runShow(showCmd, []string{id}); err == nil {
		t.Error("deleted report still shown")
	}
}

func TestRunApp(t *testing.T) {
	isolate(t)
	saveSample(t, "monday.csv")
	saveSample(t, "tuesday.csv")

	out := captureStdout(t, func() {
		if err := runApp(appCmd, []string{"com.example.app"}); err != nil {
			t.Errorf("runApp() error = %v", err)
		}
	})
	for _, want := range []string{"History for com.example.app", "monday.csv", "tuesday.csv", "Flagged in 2 of 2 reports"} {
		if !strings.Contains(out, want) {
			t.Errorf("app history missing %q\n%s", want, out)
		}
	}

	out = captureStdout(t, func() {
		if err := runApp(appCmd, []string{"com.unknown"}); err != nil {
			t.Errorf("runApp() error = %v", err)
		}
	})
	if !strings.Contains(out, "No saved reports mention com.unknown") {
		t.Errorf("unexpected output for unknown app %q", out)
	}
}

func TestRunConfig(t *testing.T) {
	isolate(t)
	t.Setenv("BATTDRAIN_THRESHOLDS_THIRD_PARTY_USAGE", "35")

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, nil); err != nil {
			t.Errorf("runConfig() error = %v", err)
		}
	})
	for _, want := range []string{"third_party_usage: 35", "system_usage: 50", "debounce: 2s", "utf-8-sig"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q\n%s", want, out)
		}
	}
}

func TestRunStatus(t *testing.T) {
	home := isolate(t)
	watchPIDFile = home + "/watch.pid"

	out := captureStdout(t, func() {
		if err := runStatus(statusCmd, nil); err != nil {
			t.Errorf("runStatus() error = %v", err)
		}
	})
	for _, want := range []string{"Watcher:", "stopped", "not created yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q\n%s", want, out)
		}
	}

	saveSample(t, "monday.csv")
	out = captureStdout(t, func() {
		if err := runStatus(statusCmd, nil); err != nil {
			t.Errorf("runStatus() error = %v", err)
		}
	})
	if !strings.Contains(out, "1 saved") || !strings.Contains(out, "monday.csv") {
		t.Errorf("status missing report summary\n%s", out)
	}
}

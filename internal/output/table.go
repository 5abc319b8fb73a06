// Package output renders battdrain reports for the terminal.
//
// This package includes:
//   - The per-app usage chart and suspicious app list of a report
//   - Report history and per-app history tables
//   - JSON and YAML export of reports
//   - A progress bar for batch analysis and a spinner for the watcher
//
// Colors are only emitted when stdout is a TTY and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
	"github.com/blackwell-systems/battdrain/internal/store"
)

const systemFlag = "POSSIBLY SYSTEM PROCESS (needs verification)"

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Renderer turns reports into terminal text.
type Renderer struct {
	cls analyzer.Classifier
	now func() time.Time

	cyan, green, yellow, red, magenta, blue *color.Color
}

// NewRenderer creates a Renderer. cls decides which apps are flagged as
// possible system processes in the usage chart.
func NewRenderer(cls analyzer.Classifier, useColor bool) *Renderer {
	r := &Renderer{
		cls:     cls,
		now:     time.Now,
		cyan:    color.New(color.FgCyan),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		red:     color.New(color.FgRed),
		magenta: color.New(color.FgMagenta),
		blue:    color.New(color.FgBlue),
	}
	for _, c := range []*color.Color{r.cyan, r.green, r.yellow, r.red, r.magenta, r.blue} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Report renders the full analysis: usage chart, counters, suspicious apps
// and heuristic score. top limits the chart rows (0 for all).
func (r *Renderer) Report(rep *analyzer.Report, top int) string {
	var sb strings.Builder

	sb.WriteString(r.green.Sprint("Analysis Results:"))
	sb.WriteString("\n")
	if rep.Source != "" {
		fmt.Fprintf(&sb, "Source: %s (%s, %s rows)\n", rep.Source, rep.Encoding, humanize.Comma(int64(rep.Rows)))
	}

	sb.WriteString("\n")
	sb.WriteString(r.UsageChart(analyzer.UsageRanking(rep, r.cls), top))
	sb.WriteString("\n")

	sb.WriteString(r.magenta.Sprintf("Total wakeups: %d", rep.Wakeups))
	sb.WriteString("\n")
	sb.WriteString(r.magenta.Sprintf("Total wakelocks: %d", rep.Wakelocks))
	sb.WriteString("\n\n")

	sb.WriteString(r.Suspicious(rep.Suspicious))
	sb.WriteString("\n")

	sb.WriteString(r.blue.Sprintf("Heuristic score: %.2f", rep.HeuristicScore))
	sb.WriteString("\n")

	return sb.String()
}

// UsageChart renders apps with positive usage, highest first.
func (r *Renderer) UsageChart(rows []analyzer.AppUsage, top int) string {
	var sb strings.Builder
	sb.WriteString(r.cyan.Sprint("Per-App Battery Usage (sorted by usage):"))
	sb.WriteString("\n")

	if len(rows) == 0 {
		sb.WriteString("No battery usage recorded.\n")
		return sb.String()
	}

	shown := rows
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Usage", "App/Package", "Flags"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})

	for _, row := range shown {
		flag := ""
		if row.IsSystem {
			flag = r.yellow.Sprint(systemFlag)
		}
		t.AppendRow(table.Row{fmt.Sprintf("%.2f", row.Usage), row.App, flag})
	}

	sb.WriteString(t.Render())
	sb.WriteString("\n")
	if hidden := len(rows) - len(shown); hidden > 0 {
		fmt.Fprintf(&sb, "... %d more apps not shown\n", hidden)
	}

	return sb.String()
}

// Suspicious renders the ranked suspicious apps with their reasons.
func (r *Renderer) Suspicious(apps []analyzer.SuspiciousApp) string {
	if len(apps) == 0 {
		return "No suspicious apps detected.\n"
	}

	var sb strings.Builder
	sb.WriteString(r.red.Sprint("Suspicious apps detected:"))
	sb.WriteString("\n")

	for _, app := range apps {
		name := r.red.Sprint(app.App)
		if app.IsSystem {
			name = r.yellow.Sprint(app.App)
		}
		fmt.Fprintf(&sb, "  %s: %s\n", name, app.Reason)
	}

	return sb.String()
}

// History renders saved report summaries.
func (r *Renderer) History(reports []*store.ReportSummary) string {
	if len(reports) == 0 {
		return "No saved reports. Run 'battdrain analyze --save <file>' to create one.\n"
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Analyzed", "Source", "Flagged", "Wakeups", "Wakelocks", "Score"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, rep := range reports {
		t.AppendRow(table.Row{
			shortID(rep.ID),
			r.relativeTime(rep.CreatedAt),
			truncate(rep.Source, 32),
			rep.FlaggedCount,
			humanize.Comma(int64(rep.Wakeups)),
			humanize.Comma(int64(rep.Wakelocks)),
			fmt.Sprintf("%.2f", rep.HeuristicScore),
		})
	}

	return t.Render() + "\n"
}

// AppHistory renders one app's usage across saved reports.
func (r *Renderer) AppHistory(app string, entries []*store.AppHistoryEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No saved reports mention %s.\n", app)
	}

	var sb strings.Builder
	sb.WriteString(r.cyan.Sprintf("History for %s:", app))
	sb.WriteString("\n")

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Report", "Analyzed", "Source", "Usage", "Foreground", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	flaggedCount := 0
	for _, e := range entries {
		status := "ok"
		if e.Flagged {
			flaggedCount++
			status = r.red.Sprintf("flagged (%.2f)", e.Score)
		}
		t.AppendRow(table.Row{
			shortID(e.ReportID),
			r.relativeTime(e.CreatedAt),
			truncate(e.Source, 32),
			fmt.Sprintf("%.2f", e.Usage),
			fmt.Sprintf("%.2f", e.Foreground),
			status,
		})
	}

	sb.WriteString(t.Render())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "\nFlagged in %d of %d reports\n", flaggedCount, len(entries))

	return sb.String()
}

// relativeTime formats t relative to now, e.g. "3 hours ago".
func (r *Renderer) relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, r.now(), "ago", "from now")
}

// shortID abbreviates a UUID to its first block.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blackwell-systems/battdrain/internal/checkin"
)

// Analyzer runs the parse, aggregate, redistribute and score pipeline.
// It holds no per-dump state and is safe for concurrent use.
type Analyzer struct {
	cfg       Config
	encodings []checkin.Encoding
	extra     []checkin.Entry // identity entries applied to every dump
	now       func() time.Time
}

// New creates an Analyzer. With no encodings the checkin defaults are used.
func New(cfg Config, encodings ...checkin.Encoding) *Analyzer {
	if len(encodings) == 0 {
		encodings = checkin.DefaultEncodings()
	}
	return &Analyzer{cfg: cfg, encodings: encodings, now: time.Now}
}

// WithIdentities registers uid to package associations that are added to
// the identity records of every analyzed dump.
func (a *Analyzer) WithIdentities(uidToPackages map[string][]string) *Analyzer {
	uids := make([]string, 0, len(uidToPackages))
	for uid := range uidToPackages {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		for _, pkg := range uidToPackages[uid] {
			a.extra = append(a.extra, checkin.Entry{Kind: checkin.KindIdentity, UID: uid, Package: pkg})
		}
	}
	return a
}

// Config returns the scoring configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze builds a report from already parsed entries.
func (a *Analyzer) Analyze(entries []checkin.Entry) *Report {
	if len(a.extra) > 0 {
		all := make([]checkin.Entry, 0, len(a.extra)+len(entries))
		all = append(all, a.extra...)
		entries = append(all, entries...)
	}

	agg := Aggregate(entries)

	for _, r := range agg.Redistribute(a.cfg.Classifier.IsThirdParty) {
		if r.Dropped() {
			slog.Debug("dropping unattributable uid usage", "uid", r.UID, "usage", r.Total)
			continue
		}
		slog.Debug("redistributed uid usage", "uid", r.UID, "usage", r.Total, "packages", r.Packages)
	}

	usage := agg.ResolvedUsage()
	foreground := agg.ResolvedForeground()
	suspicious := Score(usage, foreground, a.cfg)

	return &Report{
		GeneratedAt:    a.now(),
		Usage:          usage,
		Foreground:     foreground,
		Wakeups:        agg.Wakeups,
		Wakelocks:      agg.Wakelocks,
		Suspicious:     suspicious,
		HeuristicScore: HeuristicScore(len(suspicious), agg.Wakeups, agg.Wakelocks),
	}
}

// AnalyzeFile parses the dump at path and analyzes it.
func (a *Analyzer) AnalyzeFile(path string) (*Report, error) {
	res, err := checkin.ParseFile(path, a.encodings)
	if err != nil {
		return nil, err
	}

	report := a.Analyze(res.Entries)
	report.Source = filepath.Base(path)
	report.Encoding = res.Encoding
	report.Rows = res.Rows
	report.Skipped = res.Skipped
	return report, nil
}

// FileResult is the outcome for one path passed to AnalyzeFiles.
type FileResult struct {
	Path   string
	Report *Report
	Err    error
}

// AnalyzeFiles analyzes independent dumps concurrently. Results are returned
// in the order of paths; a failure affects only its own entry. If done is
// non-nil it is called from the worker goroutine as each file finishes.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string, done func(FileResult)) []FileResult {
	results := make([]FileResult, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		results[i].Path = path

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			if done != nil {
				defer func() { done(results[i]) }()
			}

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}

			report, err := a.AnalyzeFile(path)
			if err != nil {
				results[i].Err = fmt.Errorf("failed to analyze %s: %w", path, err)
				return
			}
			results[i].Report = report
		}(i, path)
	}
	wg.Wait()

	return results
}

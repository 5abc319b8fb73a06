package store

import "time"

// ReportSummary is one row of the report history.
type ReportSummary struct {
	ID             string
	CreatedAt      time.Time
	Source         string
	Encoding       string
	Wakeups        int
	Wakelocks      int
	FlaggedCount   int
	HeuristicScore float64
}

// AppHistoryEntry records one app's figures in a saved report.
type AppHistoryEntry struct {
	ReportID   string
	CreatedAt  time.Time
	Source     string
	Usage      float64
	Foreground float64
	Flagged    bool
	Score      float64 // 0 when not flagged
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/battdrain/internal/analyzer"
)

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Report operations

// SaveReport stores a report and its per-app rows in one transaction. A
// report without an ID is assigned a new UUID. The ID is returned.
func (s *Store) SaveReport(r *analyzer.Report) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO reports
		(id, created_at, source, encoding, row_count, skipped, wakeups, wakelocks, heuristic_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.GeneratedAt.UTC().Format(timeLayout),
		r.Source,
		r.Encoding,
		r.Rows,
		r.Skipped,
		r.Wakeups,
		r.Wakelocks,
		r.HeuristicScore,
	)
	if err != nil {
		return "", wrapErr(fmt.Sprintf("failed to insert report %s", r.ID), err)
	}

	usageStmt, err := tx.Prepare(`
		INSERT INTO report_usage (report_id, app, usage, foreground)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare usage insert: %w", err)
	}
	defer usageStmt.Close()

	for app, used := range r.Usage {
		if _, err := usageStmt.Exec(r.ID, app, used, r.Foreground[app]); err != nil {
			return "", fmt.Errorf("failed to insert usage for %s: %w", app, err)
		}
	}

	appStmt, err := tx.Prepare(`
		INSERT INTO suspicious_apps
		(report_id, rank, app, usage, foreground, ratio, threshold, score, reason, is_system)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare suspicious app insert: %w", err)
	}
	defer appStmt.Close()

	for rank, app := range r.Suspicious {
		_, err := appStmt.Exec(r.ID, rank, app.App, app.Usage, app.Foreground,
			app.ForegroundRatio, app.Threshold, app.Score, app.Reason, app.IsSystem)
		if err != nil {
			return "", fmt.Errorf("failed to insert suspicious app %s: %w", app.App, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit report %s: %w", r.ID, err)
	}

	return r.ID, nil
}

// ResolveID expands a unique ID prefix to the full report ID. The prefix is
// matched literally.
func (s *Store) ResolveID(prefix string) (string, error) {
	rows, err := s.db.Query(`SELECT id FROM reports WHERE substr(id, 1, length(?1)) = ?1 ORDER BY id LIMIT 2`, prefix)
	if err != nil {
		return "", wrapErr("failed to resolve report id", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan report id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating report ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("report %s: %w", prefix, ErrReportNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("report id prefix %s is ambiguous", prefix)
	}
}

// GetReport loads a saved report by ID or unique ID prefix.
func (s *Store) GetReport(idOrPrefix string) (*analyzer.Report, error) {
	id, err := s.ResolveID(idOrPrefix)
	if err != nil {
		return nil, err
	}

	r := &analyzer.Report{
		Usage:      make(map[string]float64),
		Foreground: make(map[string]float64),
	}
	var createdAt string

	err = s.db.QueryRow(`
		SELECT id, created_at, source, encoding, row_count, skipped, wakeups, wakelocks, heuristic_score
		FROM reports
		WHERE id = ?
	`, id).Scan(
		&r.ID,
		&createdAt,
		&r.Source,
		&r.Encoding,
		&r.Rows,
		&r.Skipped,
		&r.Wakeups,
		&r.Wakelocks,
		&r.HeuristicScore,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", id, ErrReportNotFound)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get report %s", id), err)
	}

	r.GeneratedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", id, err)
	}

	if err := s.loadUsage(r); err != nil {
		return nil, err
	}
	if err := s.loadSuspicious(r); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Store) loadUsage(r *analyzer.Report) error {
	rows, err := s.db.Query(`SELECT app, usage, foreground FROM report_usage WHERE report_id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to get usage for %s: %w", r.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var app string
		var used, fg float64
		if err := rows.Scan(&app, &used, &fg); err != nil {
			return fmt.Errorf("failed to scan usage row: %w", err)
		}
		r.Usage[app] = used
		r.Foreground[app] = fg
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating usage: %w", err)
	}
	return nil
}

func (s *Store) loadSuspicious(r *analyzer.Report) error {
	rows, err := s.db.Query(`
		SELECT app, usage, foreground, ratio, threshold, score, reason, is_system
		FROM suspicious_apps
		WHERE report_id = ?
		ORDER BY rank
	`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to get suspicious apps for %s: %w", r.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var app analyzer.SuspiciousApp
		err := rows.Scan(
			&app.App,
			&app.Usage,
			&app.Foreground,
			&app.ForegroundRatio,
			&app.Threshold,
			&app.Score,
			&app.Reason,
			&app.IsSystem,
		)
		if err != nil {
			return fmt.Errorf("failed to scan suspicious app row: %w", err)
		}
		r.Suspicious = append(r.Suspicious, app)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating suspicious apps: %w", err)
	}
	return nil
}

// ListReports returns saved reports, newest first. A limit <= 0 returns all.
func (s *Store) ListReports(limit int) ([]*ReportSummary, error) {
	query := `
		SELECT r.id, r.created_at, r.source, r.encoding, r.wakeups, r.wakelocks, r.heuristic_score,
		       (SELECT COUNT(*) FROM suspicious_apps a WHERE a.report_id = r.id)
		FROM reports r
		ORDER BY r.created_at DESC, r.id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list reports", err)
	}
	defer rows.Close()

	var summaries []*ReportSummary
	for rows.Next() {
		var sum ReportSummary
		var createdAt string

		err := rows.Scan(
			&sum.ID,
			&createdAt,
			&sum.Source,
			&sum.Encoding,
			&sum.Wakeups,
			&sum.Wakelocks,
			&sum.HeuristicScore,
			&sum.FlaggedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}

		sum.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", sum.ID, err)
		}

		summaries = append(summaries, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return summaries, nil
}

// GetAppHistory returns an app's usage across saved reports, oldest first.
func (s *Store) GetAppHistory(app string) ([]*AppHistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.created_at, r.source, u.usage, u.foreground,
		       a.score IS NOT NULL, COALESCE(a.score, 0)
		FROM report_usage u
		JOIN reports r ON r.id = u.report_id
		LEFT JOIN suspicious_apps a ON a.report_id = u.report_id AND a.app = u.app
		WHERE u.app = ?
		ORDER BY r.created_at, r.id
	`, app)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get history for %s", app), err)
	}
	defer rows.Close()

	var history []*AppHistoryEntry
	for rows.Next() {
		var e AppHistoryEntry
		var createdAt string

		err := rows.Scan(&e.ReportID, &createdAt, &e.Source, &e.Usage, &e.Foreground, &e.Flagged, &e.Score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", e.ReportID, err)
		}

		history = append(history, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

// DeleteReport removes a report and, by cascade, its per-app rows.
func (s *Store) DeleteReport(idOrPrefix string) error {
	id, err := s.ResolveID(idOrPrefix)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	return nil
}

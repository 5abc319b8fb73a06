package store

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    source TEXT,
    encoding TEXT,
    row_count INTEGER,
    skipped INTEGER,
    wakeups INTEGER,
    wakelocks INTEGER,
    heuristic_score REAL
);

CREATE TABLE IF NOT EXISTS report_usage (
    report_id TEXT NOT NULL,
    app TEXT NOT NULL,
    usage REAL NOT NULL,
    foreground REAL NOT NULL,
    PRIMARY KEY (report_id, app),
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS suspicious_apps (
    report_id TEXT NOT NULL,
    rank INTEGER NOT NULL,
    app TEXT NOT NULL,
    usage REAL NOT NULL,
    foreground REAL NOT NULL,
    ratio REAL NOT NULL,
    threshold REAL NOT NULL,
    score REAL NOT NULL,
    reason TEXT,
    is_system BOOLEAN,
    PRIMARY KEY (report_id, rank),
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_usage_app ON report_usage(app);
CREATE INDEX IF NOT EXISTS idx_suspicious_app ON suspicious_apps(app);
`

package analyzer

import "time"

// SuspiciousApp describes an app flagged as a likely drain source.
type SuspiciousApp struct {
	App             string  `json:"app" yaml:"app"`
	Usage           float64 `json:"usage" yaml:"usage"`
	Foreground      float64 `json:"foreground" yaml:"foreground"`
	ForegroundRatio float64 `json:"foreground_ratio" yaml:"foreground_ratio"`
	Threshold       float64 `json:"threshold" yaml:"threshold"`
	Score           float64 `json:"suspicion_score" yaml:"suspicion_score"`
	Reason          string  `json:"reason" yaml:"reason"`
	IsSystem        bool    `json:"is_system" yaml:"is_system"`
}

// AppUsage is one row of the per-app usage chart.
type AppUsage struct {
	App        string  `json:"app" yaml:"app"`
	Usage      float64 `json:"usage" yaml:"usage"`
	Foreground float64 `json:"foreground" yaml:"foreground"`
	IsSystem   bool    `json:"is_system" yaml:"is_system"`
}

// Report is the result of analyzing one checkin dump.
type Report struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	Encoding    string    `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Rows        int       `json:"rows" yaml:"rows"`
	Skipped     int       `json:"skipped" yaml:"skipped"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	Usage      map[string]float64 `json:"battery_usage" yaml:"battery_usage"`
	Foreground map[string]float64 `json:"foreground_usage" yaml:"foreground_usage"`
	Wakeups    int                `json:"wakeups" yaml:"wakeups"`
	Wakelocks  int                `json:"wakelocks" yaml:"wakelocks"`

	Suspicious     []SuspiciousApp `json:"suspicious_details" yaml:"suspicious_details"`
	HeuristicScore float64         `json:"heuristic_score" yaml:"heuristic_score"`
}

package analyzer

import (
	"fmt"
	"sort"
)

// Score flags apps whose usage exceeds their threshold while spending little
// of that time in the foreground, and returns them most suspicious first.
//
// For a flagged app the suspicion score is
//
//	(usage - threshold) * (ratioThreshold - foreground/usage)
//
// Both factors are positive for every flagged app. Third-party apps use the
// third-party threshold; whitelisted system components are skipped; every
// other app uses the system threshold.
func Score(usage, foreground map[string]float64, cfg Config) []SuspiciousApp {
	th := cfg.Thresholds
	cls := cfg.Classifier

	flagged := make([]SuspiciousApp, 0)
	for app, used := range usage {
		fg := foreground[app]

		ratio := 0.0
		if used > 0 {
			ratio = fg / used
		}

		var threshold float64
		switch {
		case cls.IsThirdParty(app):
			threshold = th.ThirdPartyUsage
		case cls.IsWhitelisted(app):
			continue
		default:
			threshold = th.SystemUsage
		}

		if !(used > threshold && ratio < th.ForegroundRatio) {
			continue
		}

		isSystem := cls.IsLikelySystem(app)
		flagged = append(flagged, SuspiciousApp{
			App:             app,
			Usage:           used,
			Foreground:      fg,
			ForegroundRatio: ratio,
			Threshold:       threshold,
			Score:           (used - threshold) * (th.ForegroundRatio - ratio),
			Reason:          reason(used, threshold, ratio, th.ForegroundRatio, isSystem),
			IsSystem:        isSystem,
		})
	}

	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].Score != flagged[j].Score {
			return flagged[i].Score > flagged[j].Score
		}
		return flagged[i].App < flagged[j].App
	})

	return flagged
}

func reason(usage, threshold, ratio, ratioThreshold float64, isSystem bool) string {
	r := fmt.Sprintf("Battery usage %.2f exceeds threshold %.2f by %.2f; foreground ratio %.2f is below threshold %.2f",
		usage, threshold, usage-threshold, ratio, ratioThreshold)
	if isSystem {
		r += " (possibly a system process)"
	}
	return r
}

// HeuristicScore summarises a whole report: ten points per flagged app plus
// one point per hundred wakeups and wakelocks.
func HeuristicScore(flagged, wakeups, wakelocks int) float64 {
	return float64(flagged*10) + float64(wakeups+wakelocks)/100.0
}

// UsageRanking returns the apps with positive usage, highest first.
func UsageRanking(r *Report, cls Classifier) []AppUsage {
	rows := make([]AppUsage, 0, len(r.Usage))
	for app, used := range r.Usage {
		if used <= 0 {
			continue
		}
		rows = append(rows, AppUsage{
			App:        app,
			Usage:      used,
			Foreground: r.Foreground[app],
			IsSystem:   cls.IsLikelySystem(app),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Usage != rows[j].Usage {
			return rows[i].Usage > rows[j].Usage
		}
		return rows[i].App < rows[j].App
	})

	return rows
}

package analyzer

import "github.com/blackwell-systems/battdrain/internal/checkin"

// Aggregation holds the accumulators built from one dump's entries.
type Aggregation struct {
	Usage      map[checkin.AttributionKey]float64
	Foreground map[checkin.AttributionKey]float64
	Wakeups    int
	Wakelocks  int

	// Identities maps a uid to every distinct package seen for it, in the
	// order first seen.
	Identities map[string][]string
}

// Aggregate folds entries into usage, foreground, counter and identity
// accumulators. Every entry is visited once and entries are not modified.
func Aggregate(entries []checkin.Entry) *Aggregation {
	agg := &Aggregation{
		Usage:      make(map[checkin.AttributionKey]float64),
		Foreground: make(map[checkin.AttributionKey]float64),
		Identities: make(map[string][]string),
	}

	for _, e := range entries {
		switch e.Kind {
		case checkin.KindPower:
			agg.Usage[e.Key] += e.Usage
			agg.Foreground[e.Key] += e.Foreground
		case checkin.KindWakeup:
			agg.Wakeups += e.Count
		case checkin.KindWakelock:
			agg.Wakelocks += e.Count
		case checkin.KindIdentity:
			agg.addIdentity(e.UID, e.Package)
		}
	}

	return agg
}

func (a *Aggregation) addIdentity(uid, pkg string) {
	for _, known := range a.Identities[uid] {
		if known == pkg {
			return
		}
	}
	a.Identities[uid] = append(a.Identities[uid], pkg)
}

// Redistribution records how one pending uid's usage was resolved.
type Redistribution struct {
	UID      string
	Total    float64
	Packages []string // empty when the usage was dropped
}

// Dropped reports whether the uid's usage could not be attributed.
func (r Redistribution) Dropped() bool {
	return len(r.Packages) == 0
}

// Redistribute resolves every pending key in place. The usage owed to a uid is
// split evenly across the uid's third-party packages; packages without a
// foreground entry get one at zero. Usage for a uid with no third-party
// package is dropped. Foreground recorded against a pending key is discarded
// rather than split.
func (a *Aggregation) Redistribute(isThirdParty func(string) bool) []Redistribution {
	var pending []checkin.AttributionKey
	for key := range a.Usage {
		if key.IsPending() {
			pending = append(pending, key)
		}
	}

	results := make([]Redistribution, 0, len(pending))
	for _, key := range pending {
		total := a.Usage[key]
		delete(a.Usage, key)
		delete(a.Foreground, key)

		var packages []string
		for _, pkg := range a.Identities[key.UID()] {
			if isThirdParty(pkg) {
				packages = append(packages, pkg)
			}
		}

		results = append(results, Redistribution{UID: key.UID(), Total: total, Packages: packages})
		if len(packages) == 0 {
			continue
		}

		share := total / float64(len(packages))
		for _, pkg := range packages {
			target := checkin.Attributed(pkg)
			a.Usage[target] += share
			if _, ok := a.Foreground[target]; !ok {
				a.Foreground[target] = 0
			}
		}
	}

	// Foreground-only pending keys have no usage to move.
	for key := range a.Foreground {
		if key.IsPending() {
			delete(a.Foreground, key)
		}
	}

	return results
}

// ResolvedUsage returns usage keyed by package name. Pending keys are skipped.
func (a *Aggregation) ResolvedUsage() map[string]float64 {
	return resolve(a.Usage)
}

// ResolvedForeground returns foreground time keyed by package name.
func (a *Aggregation) ResolvedForeground() map[string]float64 {
	return resolve(a.Foreground)
}

func resolve(m map[checkin.AttributionKey]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for key, v := range m {
		if key.IsPending() {
			continue
		}
		out[key.Package()] = v
	}
	return out
}

// Package checkin parses Android batterystats checkin dumps into typed entries.
//
// A checkin dump is a comma-separated record stream where the fourth column
// names the record kind:
//
//	9,0,i,uid,1000,com.example.app
//	9,1000,l,pwi,uid,500,5,0,0
//	9,0,i,wr,3
//	9,0,i,kwl,2
//
// Only the kinds needed for drain analysis are interpreted; every other row
// is kept as a bare KindOther entry so callers can skip it.
package checkin

import "fmt"

// Kind identifies the record type carried by a checkin row.
type Kind int

const (
	KindOther Kind = iota
	KindIdentity
	KindPower
	KindWakeup
	KindWakelock
)

// Wire tokens found in column 3 of a checkin row.
const (
	tokenIdentity = "uid"
	tokenPower    = "pwi"
	tokenWakeup   = "wr"
	tokenWakelock = "kwl"

	// uidSentinel in the attribution column of a pwi row means the usage is
	// owed to the row's uid rather than a named package.
	uidSentinel = "uid"
)

// String returns the wire token for the kind.
func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return tokenIdentity
	case KindPower:
		return tokenPower
	case KindWakeup:
		return tokenWakeup
	case KindWakelock:
		return tokenWakelock
	default:
		return "other"
	}
}

// AttributionKey names what a power entry's usage is charged to: either a
// resolved package name, or a uid whose packages are not yet known.
type AttributionKey struct {
	pending bool
	pkg     string
	uid     string
}

// Attributed returns a key for usage charged directly to pkg.
func Attributed(pkg string) AttributionKey {
	return AttributionKey{pkg: pkg}
}

// Pending returns a key for usage owed to uid and awaiting redistribution.
func Pending(uid string) AttributionKey {
	return AttributionKey{pending: true, uid: uid}
}

// IsPending reports whether the key still refers to a uid.
func (k AttributionKey) IsPending() bool {
	return k.pending
}

// Package returns the attributed package name ("" for pending keys).
func (k AttributionKey) Package() string {
	return k.pkg
}

// UID returns the identifier of a pending key ("" for attributed keys).
func (k AttributionKey) UID() string {
	return k.uid
}

// String renders the key the way it appears in debug output.
func (k AttributionKey) String() string {
	if k.IsPending() {
		return "uid_" + k.uid
	}
	return k.pkg
}

// Entry is one parsed checkin row. Only the fields belonging to Kind are set.
type Entry struct {
	Kind Kind
	Row  int      // 1-based row number in the source
	Raw  []string // original fields, untrimmed

	// KindIdentity
	UID     string
	Package string

	// KindPower
	Key        AttributionKey
	Usage      float64
	Foreground float64

	// KindWakeup, KindWakelock
	Count int
}

func (e Entry) String() string {
	switch e.Kind {
	case KindIdentity:
		return fmt.Sprintf("uid %s -> %s", e.UID, e.Package)
	case KindPower:
		return fmt.Sprintf("pwi %s usage=%.2f fg=%.2f", e.Key, e.Usage, e.Foreground)
	case KindWakeup, KindWakelock:
		return fmt.Sprintf("%s count=%d", e.Kind, e.Count)
	default:
		return fmt.Sprintf("other row %d", e.Row)
	}
}

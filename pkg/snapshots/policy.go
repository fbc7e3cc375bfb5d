package snapshots

// Policy decides whether a successful save should be followed by a
// snapshot capture.
type Policy interface {
	// ShouldSnapshot is consulted after a save that moved the stream head
	// to version by appending the given number of events.
	ShouldSnapshot(version int64, appended int) bool
}

type everyN struct {
	n int64
}

// EveryN captures whenever a save carries the stored event count across a
// multiple of n. Batches that jump the boundary trigger exactly once.
func EveryN(n int64) Policy {
	if n <= 0 {
		n = 1
	}
	return everyN{n: n}
}

func (p everyN) ShouldSnapshot(version int64, appended int) bool {
	if version < 0 || appended <= 0 {
		return false
	}
	after := version + 1
	before := after - int64(appended)
	return after/p.n > before/p.n
}

type never struct{}

// Never disables policy-driven captures; explicit TakeSnapshot calls
// still work.
func Never() Policy { return never{} }

func (never) ShouldSnapshot(int64, int) bool { return false }

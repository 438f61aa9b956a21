package domain

// ChangeKind classifies the transition between two consecutive statuses of
// the same pipeline.
type ChangeKind string

const (
	ChangeStart      ChangeKind = "start"
	ChangeCompletion ChangeKind = "completion"
	ChangeOther      ChangeKind = "other"
	ChangeNone       ChangeKind = "noChange"
)

// Classify compares the previously known status with a freshly fetched one.
// The branches are evaluated in order; a label change while the activity
// stays the same means a build completed (and possibly started) between two
// polls.
func Classify(prev, cur Status) ChangeKind {
	switch {
	case prev.Activity == ActivitySleeping && cur.Activity != ActivitySleeping:
		return ChangeStart
	case prev.Activity == ActivityBuilding && cur.Activity == ActivitySleeping:
		return ChangeCompletion
	case prev.Activity == cur.Activity:
		if buildLabel(cur.LastBuild) != buildLabel(prev.LastBuild) {
			return ChangeCompletion
		}
		return ChangeNone
	default:
		return ChangeOther
	}
}

func buildLabel(b *Build) string {
	if b == nil {
		return ""
	}
	return b.Label
}

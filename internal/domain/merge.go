package domain

import "time"

// MergeStatus folds a freshly parsed status into the previously known one,
// deriving the timing fields the servers do not always report. It is pure:
// callers pass the wall clock in.
//
// Rules, applied in order:
//   - entering building without a server-reported start time stamps the
//     current build with now (cctray servers report none for in-progress
//     builds);
//   - leaving building computes lastBuild.Duration = now - startedAt when
//     the payload did not supply one;
//   - a lastBuild with the same label as before keeps a previously derived
//     duration the payload does not repeat.
func MergeStatus(prev, next Status, now time.Time) Status {
	out := next
	out.CurrentBuild = cloneBuild(next.CurrentBuild)
	out.LastBuild = cloneBuild(next.LastBuild)

	entering := next.Activity == ActivityBuilding && prev.Activity != ActivityBuilding
	leaving := prev.Activity == ActivityBuilding && next.Activity != ActivityBuilding

	if entering && out.CurrentBuild != nil && out.CurrentBuild.Timestamp.IsZero() {
		out.CurrentBuild.Timestamp = now
	}

	if leaving && out.LastBuild != nil && out.LastBuild.Duration == 0 {
		if prev.CurrentBuild != nil && !prev.CurrentBuild.Timestamp.IsZero() {
			out.LastBuild.Duration = now.Sub(prev.CurrentBuild.Timestamp)
		}
	}

	if out.LastBuild != nil && out.LastBuild.Duration == 0 &&
		prev.LastBuild != nil && prev.LastBuild.Duration > 0 &&
		prev.LastBuild.Label == out.LastBuild.Label {
		out.LastBuild.Duration = prev.LastBuild.Duration
	}

	return out
}

func cloneBuild(b *Build) *Build {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStatus_StampsStartTimeWhenBuildBegins(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	prev := Status{Activity: ActivitySleeping}
	next := Status{Activity: ActivityBuilding, CurrentBuild: &Build{Result: ResultUnknown}}

	got := MergeStatus(prev, next, now)

	require.NotNil(t, got.CurrentBuild)
	assert.Equal(t, now, got.CurrentBuild.Timestamp)
}

func TestMergeStatus_KeepsServerReportedStartTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	started := now.Add(-3 * time.Minute)
	prev := Status{Activity: ActivitySleeping}
	next := Status{Activity: ActivityBuilding, CurrentBuild: &Build{Timestamp: started}}

	got := MergeStatus(prev, next, now)

	assert.Equal(t, started, got.CurrentBuild.Timestamp)
}

func TestMergeStatus_ComputesDurationOnStop(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	t0 := now.Add(-154 * time.Second)
	prev := Status{
		Activity:     ActivityBuilding,
		CurrentBuild: &Build{Timestamp: t0},
	}
	next := Status{Activity: ActivitySleeping, LastBuild: &Build{Result: ResultSuccess, Label: "42"}}

	got := MergeStatus(prev, next, now)

	require.NotNil(t, got.LastBuild)
	assert.Equal(t, 154*time.Second, got.LastBuild.Duration)
}

func TestMergeStatus_ServerDurationWinsOnStop(t *testing.T) {
	now := time.Now()
	prev := Status{Activity: ActivityBuilding, CurrentBuild: &Build{Timestamp: now.Add(-time.Hour)}}
	next := Status{Activity: ActivitySleeping, LastBuild: &Build{Duration: 90 * time.Second}}

	got := MergeStatus(prev, next, now)

	assert.Equal(t, 90*time.Second, got.LastBuild.Duration)
}

func TestMergeStatus_CarriesDurationForwardForSameLabel(t *testing.T) {
	prev := Status{
		Activity:  ActivitySleeping,
		LastBuild: &Build{Label: "label.1", Duration: 90 * time.Second},
	}
	next := Status{Activity: ActivitySleeping, LastBuild: &Build{Label: "label.1"}}

	got := MergeStatus(prev, next, time.Now())

	assert.Equal(t, 90*time.Second, got.LastBuild.Duration)
}

func TestMergeStatus_DropsDurationForNewLabel(t *testing.T) {
	prev := Status{
		Activity:  ActivitySleeping,
		LastBuild: &Build{Label: "label.1", Duration: 90 * time.Second},
	}
	next := Status{Activity: ActivitySleeping, LastBuild: &Build{Label: "label.2"}}

	got := MergeStatus(prev, next, time.Now())

	assert.Zero(t, got.LastBuild.Duration)
}

func TestMergeStatus_DoesNotAliasInputBuilds(t *testing.T) {
	next := Status{Activity: ActivityBuilding, CurrentBuild: &Build{}}
	got := MergeStatus(Status{Activity: ActivitySleeping}, next, time.Now())

	require.NotNil(t, got.CurrentBuild)
	assert.NotSame(t, next.CurrentBuild, got.CurrentBuild)
	assert.True(t, next.CurrentBuild.Timestamp.IsZero())
}

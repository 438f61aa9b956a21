package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davarch/pipewatch/internal/domain"
)

func testPipeline(name, url string) domain.Pipeline {
	return domain.Pipeline{
		Name:   name,
		Feed:   domain.Feed{Type: domain.FeedTypeCCTray, URL: url, Name: name},
		Status: domain.Status{Activity: domain.ActivityOther},
	}
}

func TestRegistry_AddRejectsDuplicateIdentity(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	assert.True(t, r.Add(testPipeline("a", "http://ci/x")))
	assert.False(t, r.Add(testPipeline("a", "http://ci/x")))
	assert.True(t, r.Add(testPipeline("a", "http://ci/y")), "same name on another URL is a distinct pipeline")
	assert.True(t, r.Add(testPipeline("b", "http://ci/x")), "same URL under another name is a distinct pipeline")
}

func TestRegistry_ApplySuccessClearsErrorAndPause(t *testing.T) {
	p := testPipeline("a", "http://ci/x")
	p.ConnectionError = "Could not connect to the server."
	p.Feed.PauseUntil = time.Now().Add(-time.Minute)
	p.Feed.PauseReason = "Rate limited"

	r := NewRegistry(zap.NewNop(), p)
	now := time.Now()
	r.Apply(domain.Update{
		Key:    p.Key(),
		Status: domain.Status{Activity: domain.ActivitySleeping, LastBuild: &domain.Build{Label: "1"}},
	}, now)

	got, ok := r.Get(p.Key())
	require.True(t, ok)
	assert.Empty(t, got.ConnectionError)
	assert.True(t, got.Feed.PauseUntil.IsZero())
	assert.Empty(t, got.Feed.PauseReason)
	assert.Equal(t, domain.ActivitySleeping, got.Status.Activity)
	assert.Equal(t, now, got.LastUpdated)
}

func TestRegistry_ApplyErrorSurfacesMessageAndResetsActivity(t *testing.T) {
	p := testPipeline("a", "http://ci/x")
	p.Status = domain.Status{
		Activity:     domain.ActivityBuilding,
		CurrentBuild: &domain.Build{Timestamp: time.Now()},
		LastBuild:    &domain.Build{Label: "7", Result: domain.ResultSuccess},
	}

	r := NewRegistry(zap.NewNop(), p)
	r.Apply(domain.Update{Key: p.Key(), Err: domain.ErrNoStatus}, time.Now())

	got, _ := r.Get(p.Key())
	assert.Equal(t, "The server did not provide a status for this pipeline.", got.ConnectionError)
	assert.Equal(t, domain.ActivityOther, got.Status.Activity)
	assert.Nil(t, got.Status.CurrentBuild)
	require.NotNil(t, got.Status.LastBuild, "the last completed build is kept")
	assert.Equal(t, "7", got.Status.LastBuild.Label)
}

func TestRegistry_ApplyPauseLeavesStatusUntouched(t *testing.T) {
	p := testPipeline("a", "http://ci/x")
	p.Status = domain.Status{Activity: domain.ActivitySleeping, LastBuild: &domain.Build{Label: "3"}}

	until := time.Now().Add(10 * time.Minute)
	r := NewRegistry(zap.NewNop(), p)
	r.Apply(domain.Update{Key: p.Key(), PauseUntil: until, PauseReason: "Rate limited"}, time.Now())

	got, _ := r.Get(p.Key())
	assert.Equal(t, until, got.Feed.PauseUntil)
	assert.Equal(t, "Rate limited", got.Feed.PauseReason)
	assert.Equal(t, domain.ActivitySleeping, got.Status.Activity)
	assert.Empty(t, got.ConnectionError)
}

func TestRegistry_ApplyMergesDerivedDuration(t *testing.T) {
	t0 := time.Now().Add(-90 * time.Second)
	p := testPipeline("a", "http://ci/x")
	p.Status = domain.Status{
		Activity:     domain.ActivityBuilding,
		CurrentBuild: &domain.Build{Timestamp: t0},
	}

	r := NewRegistry(zap.NewNop(), p)
	r.Apply(domain.Update{
		Key:    p.Key(),
		Status: domain.Status{Activity: domain.ActivitySleeping, LastBuild: &domain.Build{Label: "8"}},
	}, time.Now())

	got, _ := r.Get(p.Key())
	require.NotNil(t, got.Status.LastBuild)
	assert.InDelta(t, 90, got.Status.LastBuild.Duration.Seconds(), 2)
}

func TestRegistry_SubscribeReceivesEvents(t *testing.T) {
	p := testPipeline("a", "http://ci/x")
	r := NewRegistry(zap.NewNop(), p)
	events := r.Subscribe(4)

	r.Apply(domain.Update{
		Key:    p.Key(),
		Status: domain.Status{Activity: domain.ActivityBuilding, CurrentBuild: &domain.Build{}},
	}, time.Now())

	select {
	case ev := <-events:
		assert.Equal(t, "a", ev.Pipeline.Name)
		assert.Equal(t, domain.ActivityOther, ev.Previous.Activity)
		assert.Equal(t, domain.ActivityBuilding, ev.Pipeline.Status.Activity)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestRegistry_SetPipelinesKeepsManagedAndSurvivors(t *testing.T) {
	manual := testPipeline("manual", "http://ci/x")
	managed := testPipeline("managed", "http://ci/y")
	managed.ManagedBySource = "src-1"

	r := NewRegistry(zap.NewNop(), manual, managed)

	replacement := testPipeline("manual", "http://ci/x")
	newcomer := testPipeline("new", "http://ci/z")
	added := r.SetPipelines([]domain.Pipeline{replacement, newcomer})

	assert.Equal(t, []domain.PipelineKey{newcomer.Key()}, added)

	_, ok := r.Get(managed.Key())
	assert.True(t, ok, "source-managed pipelines survive config reloads")
	_, ok = r.Get(manual.Key())
	assert.True(t, ok)

	r.SetPipelines([]domain.Pipeline{newcomer})
	_, ok = r.Get(manual.Key())
	assert.False(t, ok, "manual pipelines dropped from config are removed")
}

func TestRegistry_ApplyUnknownKeyIsIgnored(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Apply(domain.Update{Key: domain.PipelineKey{Name: "ghost", URL: "http://ci"}}, time.Now())
	assert.Empty(t, r.Snapshot())
}

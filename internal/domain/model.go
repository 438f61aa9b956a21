package domain

import "time"

type FeedType string

const (
	FeedTypeCCTray FeedType = "cctray"
	FeedTypeGitHub FeedType = "github"
	FeedTypeGitLab FeedType = "gitlab"
)

type Activity string

const (
	ActivityBuilding Activity = "building"
	ActivitySleeping Activity = "sleeping"
	ActivityOther    Activity = "other"
)

type BuildResult string

const (
	ResultSuccess BuildResult = "success"
	ResultFailure BuildResult = "failure"
	ResultUnknown BuildResult = "unknown"
	ResultOther   BuildResult = "other"
)

// Feed describes how to reach the server holding status for a pipeline.
// For cctray one feed URL typically serves many pipelines; for github and
// gitlab each pipeline has its own URL.
type Feed struct {
	Type FeedType
	URL  string

	// Name is the project name as known to a cctray server. It may differ
	// from the pipeline's display name. Unused for other feed types.
	Name string

	// PauseUntil/PauseReason record a server-imposed cooldown. While
	// now < PauseUntil the scheduler must not poll this feed.
	PauseUntil  time.Time
	PauseReason string
}

func (f Feed) Key() FeedKey { return FeedKey{Type: f.Type, URL: f.URL} }

func (f Feed) IsPaused(now time.Time) bool {
	return !f.PauseUntil.IsZero() && now.Before(f.PauseUntil)
}

// FeedKey identifies a physical feed endpoint for deduplication: all
// pipelines sharing a key are served by one request per poll cycle.
type FeedKey struct {
	Type FeedType
	URL  string
}

// Build is one execution record of a pipeline, in progress or completed.
// Zero values mean "not reported": a zero Timestamp is an unknown start
// time, a zero Duration is an unknown elapsed time.
type Build struct {
	Result    BuildResult
	ID        string
	Label     string
	Timestamp time.Time
	Duration  time.Duration
	Message   string
	User      string
	Avatar    string
}

// Status is what is currently known about a pipeline. CurrentBuild is
// present only while Activity == ActivityBuilding.
type Status struct {
	Activity     Activity
	CurrentBuild *Build
	LastBuild    *Build
	WebURL       string
}

// Pipeline is one monitored build job. Identity is the (Name, Feed.URL)
// pair: two pipelines may share a cctray URL but not both name and URL.
type Pipeline struct {
	Name            string
	Feed            Feed
	Status          Status
	ConnectionError string
	LastUpdated     time.Time

	// ManagedBySource holds the id of the dynamic feed source that created
	// this pipeline; empty for manually added pipelines.
	ManagedBySource string
}

func (p Pipeline) Key() PipelineKey { return PipelineKey{Name: p.Name, URL: p.Feed.URL} }

type PipelineKey struct {
	Name string
	URL  string
}

// Update is the outcome of one poll attempt for one pipeline. Exactly one
// of three cases holds: a fresh Status (Err nil, PauseUntil zero), an
// error to surface as the pipeline's connection error, or a rate-limit
// pause to record on the feed.
type Update struct {
	Key         PipelineKey
	Status      Status
	Err         error
	PauseUntil  time.Time
	PauseReason string
}

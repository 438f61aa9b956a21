package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davarch/pipewatch/internal/domain"
)

// Source is one cctray endpoint whose project list is expanded into
// managed pipelines.
type Source struct {
	ID            string
	URL           string
	Enabled       bool
	RemoveDeleted bool
}

// SourceID returns the configured id, or a stable one derived from the
// URL so reconciliation survives restarts without config writes.
func SourceID(configured, url string) string {
	if configured != "" {
		return configured
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// ProjectLister fetches the project names a cctray feed advertises.
type ProjectLister interface {
	ProjectNames(ctx context.Context, feedURL string) ([]string, error)
}

// SyncDiff is the outcome of comparing a source's remote project list with
// the locally tracked pipelines.
type SyncDiff struct {
	ToAdd    []string
	ToRemove []domain.PipelineKey
}

// Diff computes the three-way reconciliation for one source. Only
// pipelines managed by this source are removal candidates, and only when
// the source asks for deleted pipelines to be removed. A disabled source
// changes nothing.
func Diff(src Source, remote []string, local []domain.Pipeline) SyncDiff {
	if !src.Enabled {
		return SyncDiff{}
	}

	present := make(map[string]bool)
	managed := make(map[string]domain.PipelineKey)
	for _, p := range local {
		if p.Feed.URL != src.URL {
			continue
		}
		present[p.Name] = true
		if p.ManagedBySource == src.ID {
			managed[p.Name] = p.Key()
		}
	}

	var d SyncDiff
	remoteSet := make(map[string]bool, len(remote))
	for _, name := range remote {
		remoteSet[name] = true
		if !present[name] {
			d.ToAdd = append(d.ToAdd, name)
		}
	}
	if src.RemoveDeleted {
		for name, key := range managed {
			if !remoteSet[name] {
				d.ToRemove = append(d.ToRemove, key)
			}
		}
	}
	return d
}

// FeedSync periodically reconciles every source against its server.
type FeedSync struct {
	log     *zap.Logger
	reg     *Registry
	lister  ProjectLister
	sources []Source
	every   time.Duration
	onAdd   func(keys ...domain.PipelineKey)
}

func NewFeedSync(log *zap.Logger, reg *Registry, lister ProjectLister, sources []Source, every time.Duration, onAdd func(keys ...domain.PipelineKey)) *FeedSync {
	return &FeedSync{
		log:     log,
		reg:     reg,
		lister:  lister,
		sources: sources,
		every:   every,
		onAdd:   onAdd,
	}
}

func (f *FeedSync) Run(ctx context.Context) {
	t := time.NewTicker(f.every)
	defer t.Stop()

	f.SyncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.SyncAll(ctx)
		}
	}
}

func (f *FeedSync) SyncAll(ctx context.Context) {
	for _, src := range f.sources {
		if err := f.syncOne(ctx, src); err != nil {
			f.log.Warn("feed sync failed",
				zap.String("source", src.URL),
				zap.Error(err),
			)
		}
	}
}

func (f *FeedSync) syncOne(ctx context.Context, src Source) error {
	if !src.Enabled {
		return nil
	}

	remote, err := f.lister.ProjectNames(ctx, src.URL)
	if err != nil {
		return err
	}

	d := Diff(src, remote, f.reg.Snapshot())
	var added []domain.PipelineKey
	for _, name := range d.ToAdd {
		p := domain.Pipeline{
			Name: name,
			Feed: domain.Feed{
				Type: domain.FeedTypeCCTray,
				URL:  src.URL,
				Name: name,
			},
			Status:          domain.Status{Activity: domain.ActivityOther},
			ManagedBySource: src.ID,
		}
		if f.reg.Add(p) {
			added = append(added, p.Key())
		}
	}
	for _, key := range d.ToRemove {
		f.reg.Remove(key)
	}

	if len(added) > 0 || len(d.ToRemove) > 0 {
		f.log.Info("feed sync applied",
			zap.String("source", src.URL),
			zap.Int("added", len(added)),
			zap.Int("removed", len(d.ToRemove)),
		)
	}
	if len(added) > 0 && f.onAdd != nil {
		f.onAdd(added...)
	}
	return nil
}

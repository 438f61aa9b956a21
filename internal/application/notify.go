package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/davarch/pipewatch/internal/domain"
)

// Dispatcher turns registry events into desktop notifications and keeps
// the status cache file current for external consumers.
type Dispatcher struct {
	log    *zap.Logger
	reg    *Registry
	note   domain.Notifier
	cache  domain.StatusCache
	events <-chan Event
}

func NewDispatcher(log *zap.Logger, reg *Registry, note domain.Notifier, cache domain.StatusCache) *Dispatcher {
	return &Dispatcher{
		log:    log,
		reg:    reg,
		note:   note,
		cache:  cache,
		events: reg.Subscribe(32),
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	if title, ok := titleFor(domain.Classify(ev.Previous, ev.Pipeline.Status), ev.Pipeline.Status); ok {
		if err := d.note.Notify(ctx, title, ev.Pipeline.Name, ev.Pipeline.Status.WebURL); err != nil {
			d.log.Warn("notification failed",
				zap.String("pipeline", ev.Pipeline.Name),
				zap.Error(err),
			)
		}
	}

	if err := d.cache.Write(ctx, d.reg.Snapshot()); err != nil {
		d.log.Warn("cache write failed", zap.Error(err))
	}
}

func titleFor(kind domain.ChangeKind, st domain.Status) (string, bool) {
	switch kind {
	case domain.ChangeStart:
		return "▶️ Build started", true
	case domain.ChangeCompletion:
		result := domain.ResultUnknown
		if st.LastBuild != nil {
			result = st.LastBuild.Result
		}
		switch result {
		case domain.ResultSuccess:
			return "✅ Build succeeded", true
		case domain.ResultFailure:
			return "❌ Build failed", true
		default:
			return "ℹ️ Build finished", true
		}
	default:
		return "", false
	}
}

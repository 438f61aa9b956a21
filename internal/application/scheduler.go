package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davarch/pipewatch/internal/domain"
)

// Scheduler drives the poll cycles. Each tick partitions the pipeline set
// into feed groups, launches a fetch per group, and serializes the
// merge-back through the registry. Fetches run detached from the loop, so
// one slow endpoint never delays the next tick or an out-of-band poll; a
// group whose previous fetch is still in flight is skipped until it
// finishes.
type Scheduler struct {
	log     *zap.Logger
	reg     *Registry
	readers map[domain.FeedType]domain.FeedReader
	every   time.Duration
	tasks   *errgroup.Group

	mu       sync.Mutex
	inflight map[domain.FeedKey]struct{}

	kick chan []domain.PipelineKey
}

func NewScheduler(log *zap.Logger, reg *Registry, readers map[domain.FeedType]domain.FeedReader, every time.Duration) *Scheduler {
	return &Scheduler{
		log:      log,
		reg:      reg,
		readers:  readers,
		every:    every,
		tasks:    new(errgroup.Group),
		inflight: make(map[domain.FeedKey]struct{}),
		kick:     make(chan []domain.PipelineKey, 8),
	}
}

// PollNow requests an out-of-band poll of just the given pipelines, used
// when pipelines appear between ticks. Without keys it polls everything.
func (s *Scheduler) PollNow(keys ...domain.PipelineKey) {
	select {
	case s.kick <- keys:
	default:
		s.log.Debug("poll request dropped, kick queue full")
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.every)
	defer t.Stop()

	s.tick(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			_ = s.tasks.Wait()
			return
		case <-t.C:
			s.tick(ctx, nil)
		case keys := <-s.kick:
			s.tick(ctx, keys)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, only []domain.PipelineKey) {
	now := time.Now()
	for key, pipelines := range s.groups(only, now) {
		reader, ok := s.readers[key.Type]
		if !ok {
			s.log.Warn("no reader for feed type", zap.String("type", string(key.Type)))
			continue
		}
		if !s.acquire(key) {
			s.log.Debug("fetch already in flight, skipping",
				zap.String("url", key.URL))
			continue
		}

		key, pipelines := key, pipelines
		s.tasks.Go(func() error {
			defer s.release(key)
			started := time.Now()
			for _, u := range reader.Update(ctx, pipelines) {
				s.reg.Apply(u, time.Now())
			}
			s.log.Debug("feed polled",
				zap.String("url", key.URL),
				zap.Duration("took", time.Since(started)))
			return nil
		})
	}
}

// groups partitions the pipelines by physical feed endpoint, dropping
// paused feeds so no task is spawned for them.
func (s *Scheduler) groups(only []domain.PipelineKey, now time.Time) map[domain.FeedKey][]domain.Pipeline {
	wanted := map[domain.PipelineKey]bool{}
	for _, k := range only {
		wanted[k] = true
	}

	groups := make(map[domain.FeedKey][]domain.Pipeline)
	for _, p := range s.reg.Snapshot() {
		if only != nil && !wanted[p.Key()] {
			continue
		}
		if p.Feed.IsPaused(now) {
			continue
		}
		key := p.Feed.Key()
		groups[key] = append(groups[key], p)
	}
	return groups
}

func (s *Scheduler) acquire(key domain.FeedKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Scheduler) release(key domain.FeedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

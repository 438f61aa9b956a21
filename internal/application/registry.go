package application

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davarch/pipewatch/internal/domain"
)

// Event is emitted after one pipeline has been updated in place.
type Event struct {
	Pipeline domain.Pipeline
	Previous domain.Status
}

// Registry is the single shared mutable store of pipelines. Fetches run in
// parallel but every write goes through Apply under one lock, so readers
// never observe a half-updated pipeline.
type Registry struct {
	log *zap.Logger

	mu    sync.RWMutex
	order []domain.PipelineKey
	byKey map[domain.PipelineKey]*domain.Pipeline
	subs  []chan Event
}

func NewRegistry(log *zap.Logger, pipelines ...domain.Pipeline) *Registry {
	r := &Registry{
		log:   log,
		byKey: make(map[domain.PipelineKey]*domain.Pipeline),
	}
	for _, p := range pipelines {
		r.add(p)
	}
	return r
}

func (r *Registry) add(p domain.Pipeline) bool {
	key := p.Key()
	if _, exists := r.byKey[key]; exists {
		return false
	}
	cp := p
	r.byKey[key] = &cp
	r.order = append(r.order, key)
	return true
}

// Add registers a pipeline. It reports false when the (name, URL) identity
// is already taken.
func (r *Registry) Add(p domain.Pipeline) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(p)
}

func (r *Registry) Remove(key domain.PipelineKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[key]; !exists {
		return false
	}
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// SetPipelines reconciles the registry against a freshly loaded pipeline
// set, keeping accumulated status for pipelines that survive. Pipelines
// owned by a dynamic feed source are left alone; their lifecycle belongs
// to the sync loop. It returns the keys that are new, so the caller can
// poll them right away.
func (r *Registry) SetPipelines(pipelines []domain.Pipeline) []domain.PipelineKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[domain.PipelineKey]bool, len(pipelines))
	var added []domain.PipelineKey
	for _, p := range pipelines {
		key := p.Key()
		want[key] = true
		if r.add(p) {
			added = append(added, key)
		}
	}
	for _, key := range append([]domain.PipelineKey(nil), r.order...) {
		if !want[key] && r.byKey[key].ManagedBySource == "" {
			delete(r.byKey, key)
			for i, k := range r.order {
				if k == key {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		}
	}
	return added
}

// Snapshot returns value copies of all pipelines in insertion order.
func (r *Registry) Snapshot() []domain.Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Pipeline, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.byKey[key])
	}
	return out
}

func (r *Registry) Get(key domain.PipelineKey) (domain.Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKey[key]
	if !ok {
		return domain.Pipeline{}, false
	}
	return *p, true
}

// Apply folds one poll outcome into the registry. A successful poll merges
// the new status and clears any previous error and pause; a failure sets
// the connection error and drops the activity to "other"; a rate limit
// pauses the feed and leaves the status untouched.
func (r *Registry) Apply(u domain.Update, now time.Time) {
	r.mu.Lock()
	p, ok := r.byKey[u.Key]
	if !ok {
		r.mu.Unlock()
		return
	}

	prev := p.Status
	p.LastUpdated = now
	switch {
	case !u.PauseUntil.IsZero():
		p.Feed.PauseUntil = u.PauseUntil
		p.Feed.PauseReason = u.PauseReason
	case u.Err != nil:
		p.ConnectionError = domain.Describe(u.Err)
		p.Status.Activity = domain.ActivityOther
		p.Status.CurrentBuild = nil
	default:
		p.Status = domain.MergeStatus(prev, u.Status, now)
		p.ConnectionError = ""
		p.Feed.PauseUntil = time.Time{}
		p.Feed.PauseReason = ""
	}
	ev := Event{Pipeline: *p, Previous: prev}
	r.mu.Unlock()

	r.publish(ev)
}

// Subscribe registers an observer channel. Events are dropped rather than
// blocking the updater when a subscriber falls behind.
func (r *Registry) Subscribe(buf int) <-chan Event {
	ch := make(chan Event, buf)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *Registry) publish(ev Event) {
	r.mu.RLock()
	subs := r.subs
	r.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			r.log.Debug("dropping registry event, subscriber is behind",
				zap.String("pipeline", ev.Pipeline.Name))
		}
	}
}

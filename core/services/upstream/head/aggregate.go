package head

import (
	"context"
	"sync"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/services/cache"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
	"github.com/nodefleet/multistream/core/utils"
)

var _ upstream.Head = (*Aggregate)(nil)

// Aggregate is the canonical chain tip as seen by a Multistream: it
// follows the heaviest block promoted by any of its member heads.
type Aggregate struct {
	inner *Head

	cacheSink cache.Sink

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewAggregate builds an Aggregate head with no members wired yet.
// sink may be cache.NoopSink{} when no cache is configured.
func NewAggregate(sink cache.Sink) *Aggregate {
	if sink == nil {
		sink = cache.NoopSink{}
	}
	a := &Aggregate{
		inner:     New(),
		cacheSink: sink,
		cancels:   make(map[string]context.CancelFunc),
	}
	_ = a.cacheSink.SetHead(a.inner)
	return a
}

func (a *Aggregate) Current() *models.BlockRef { return a.inner.Current() }

func (a *Aggregate) CurrentHeight(ctx context.Context) (uint64, error) {
	return a.inner.CurrentHeight(ctx)
}

func (a *Aggregate) Flux() <-chan models.BlockRef { return a.inner.Flux() }

// Follow starts consuming id's head flux until ctx is done or Unfollow
// is called for the same id. Re-calling Follow for an already-followed
// id first stops the previous subscription.
func (a *Aggregate) Follow(ctx context.Context, id string, h upstream.Head) {
	a.Unfollow(id)

	followCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancels[id] = cancel
	a.mu.Unlock()

	go func() {
		flux := h.Flux()
		if c := h.Current(); c != nil {
			if a.inner.Update(*c) {
				a.onPromoted(*c)
			}
		}
		for {
			select {
			case ref, ok := <-flux:
				if !ok {
					return
				}
				if a.inner.Update(ref) {
					a.onPromoted(ref)
				}
			case <-followCtx.Done():
				return
			}
		}
	}()
}

func (a *Aggregate) Unfollow(id string) {
	a.mu.Lock()
	cancel, ok := a.cancels[id]
	if ok {
		delete(a.cancels, id)
	}
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

func (a *Aggregate) onPromoted(ref models.BlockRef) {
	if err := a.cacheSink.Cache(cache.TagLatest, ref); err != nil {
		logger.Warnw("head: failed to update cache with new promoted block",
			"height", ref.Height, "err", err)
	}
}

// Close stops following every member and releases subscribers.
func (a *Aggregate) Close() {
	a.mu.Lock()
	for id, cancel := range a.cancels {
		cancel()
		delete(a.cancels, id)
	}
	a.mu.Unlock()
	a.inner.Close()
}

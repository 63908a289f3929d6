// Package head implements per-upstream and aggregate chain-tip
// tracking, plus the lag observer that measures each upstream's
// distance from the aggregate tip.
package head

import (
	"context"
	"sync"

	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
	"github.com/nodefleet/multistream/core/utils"
)

var _ upstream.Head = (*Head)(nil)

// Head is the per-upstream head: a driver pushes newly observed
// blocks into it via Update, and it only ever promotes a block whose
// weight strictly exceeds the current one's.
type Head struct {
	mu      sync.RWMutex
	current *models.BlockRef
	flux    *utils.Broadcast[models.BlockRef]
}

func New() *Head {
	return &Head{flux: utils.NewBroadcast[models.BlockRef](4)}
}

// Update considers a newly observed block. It promotes and publishes
// iff ref is strictly heavier than the current best; ties and lighter
// successors are ignored (first-seen wins).
func (h *Head) Update(ref models.BlockRef) (promoted bool) {
	h.mu.Lock()
	if !ref.Heavier(h.current) {
		h.mu.Unlock()
		return false
	}
	cp := ref
	h.current = &cp
	h.mu.Unlock()

	h.flux.Publish(ref)
	return true
}

func (h *Head) Current() *models.BlockRef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil
	}
	cp := *h.current
	return &cp
}

// CurrentHeight blocks until a block has been promoted or ctx is
// done. If a current block already exists it returns immediately.
func (h *Head) CurrentHeight(ctx context.Context) (uint64, error) {
	if c := h.Current(); c != nil {
		return c.Height, nil
	}

	sub, unsubscribe := h.flux.Subscribe()
	defer unsubscribe()

	// current may have been set between the first Current() check and
	// Subscribe(); check again to avoid a lost wakeup.
	if c := h.Current(); c != nil {
		return c.Height, nil
	}

	select {
	case ref, ok := <-sub:
		if !ok {
			return 0, upstream.ErrHeadTimeout
		}
		return ref.Height, nil
	case <-ctx.Done():
		return 0, upstream.ErrHeadTimeout
	}
}

func (h *Head) Flux() <-chan models.BlockRef {
	ch, _ := h.flux.Subscribe()
	return ch
}

// Close releases all subscribers; used when the owning upstream is
// stopped.
func (h *Head) Close() {
	h.flux.Close()
}

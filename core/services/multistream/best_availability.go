package multistream

import (
	"sync"

	"github.com/nodefleet/multistream/core/services/upstream"
)

// bestAvailability reduces many upstreams' status streams into one
// aggregate Availability.
//
// Entries are keyed by upstream id. Forget is called by Multistream's
// dispatch on REMOVED/FATAL_SETTINGS_ERROR_REMOVED so the map stays
// bounded by current membership, not historical churn.
type bestAvailability struct {
	mu   sync.Mutex
	byID map[string]upstream.Availability
	last upstream.Availability
	init bool
}

func newBestAvailability() *bestAvailability {
	return &bestAvailability{byID: map[string]upstream.Availability{}}
}

// Update records id's latest status and returns the new aggregate
// plus whether it differs from the previously reported aggregate.
func (b *bestAvailability) Update(id string, status upstream.Availability) (agg upstream.Availability, changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.byID[id] = status
	agg = b.aggregateLocked()
	changed = !b.init || agg != b.last
	b.last = agg
	b.init = true
	return agg, changed
}

// Forget evicts id, e.g. because the upstream was removed.
func (b *bestAvailability) Forget(id string) (agg upstream.Availability, changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.byID, id)
	agg = b.aggregateLocked()
	changed = !b.init || agg != b.last
	b.last = agg
	b.init = true
	return agg, changed
}

func (b *bestAvailability) aggregateLocked() upstream.Availability {
	if len(b.byID) == 0 {
		return upstream.UNAVAILABLE
	}
	statuses := make([]upstream.Availability, 0, len(b.byID))
	for _, s := range b.byID {
		statuses = append(statuses, s)
	}
	return upstream.MinAvailability(statuses...)
}

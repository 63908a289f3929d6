package utils

import "sync"

// Mailbox is a bounded, single-slot-aware delivery box used to feed a
// single-consumer event loop without unbounded buffering. Capacity 0
// means unbounded (backed by a growable slice); capacity > 0 drops the
// oldest unprocessed item once full, reporting that back to the
// caller so it can log the loss.
//
// Multistream's event ingress sink is built from it.
type Mailbox struct {
	mu       sync.Mutex
	items    []interface{}
	capacity int
	notifyCh chan struct{}
}

// NewMailbox constructs a Mailbox. capacity == 0 means unbounded.
func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{
		capacity: capacity,
		notifyCh: make(chan struct{}, 1),
	}
}

// Deliver enqueues x. It returns true if an older unprocessed item was
// dropped to make room (only possible when capacity > 0).
func (m *Mailbox) Deliver(x interface{}) (wasOverCapacity bool) {
	m.mu.Lock()
	if m.capacity > 0 && len(m.items) >= m.capacity {
		m.items = m.items[1:]
		wasOverCapacity = true
	}
	m.items = append(m.items, x)
	m.mu.Unlock()

	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
	return
}

// Notify returns a channel that receives a signal whenever an item is
// delivered. It is safe to read repeatedly; signals coalesce, so the
// consumer must drain with Retrieve in a loop on each wakeup.
func (m *Mailbox) Notify() <-chan struct{} {
	return m.notifyCh
}

// Retrieve pops the oldest item, if any.
func (m *Mailbox) Retrieve() (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	x := m.items[0]
	m.items = m.items[1:]
	return x, true
}

// RetrieveLatestAndClear drops everything except the most recently
// delivered item and returns it, or nil if the mailbox is empty. Used
// by consumers that only care about the newest value (e.g. the newest
// observed head).
func (m *Mailbox) RetrieveLatestAndClear() interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil
	}
	latest := m.items[len(m.items)-1]
	m.items = nil
	return latest
}

// Len reports the number of items currently queued.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

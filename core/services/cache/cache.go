// Package cache specifies the minimal external collaborator contract
// the core consumes. The cache subsystem itself (storage, eviction,
// persistence) is out of scope; this is the sink interface the
// aggregate Head binds to once at construction and updates with
// every newly promoted block.
package cache

import "github.com/nodefleet/multistream/core/store/models"

// Tag selects which logical slot a cached BlockRef occupies.
type Tag string

const TagLatest Tag = "LATEST"

// Sink is the minimal cache contract: cache a block under a tag, and
// rebind the sink to a new Head so it can keep following that head's
// future promotions on its own.
type Sink interface {
	Cache(tag Tag, ref models.BlockRef) error
	SetHead(h HeadSource) error
}

// HeadSource is the narrow slice of upstream.Head the cache sink needs
// to rebind to — just enough to subscribe, without importing the
// upstream package (which would create a cycle: upstream -> head ->
// cache -> upstream).
type HeadSource interface {
	Flux() <-chan models.BlockRef
}

// NoopSink discards everything; useful as a default when no cache is
// wired by the embedding application.
type NoopSink struct{}

func (NoopSink) Cache(Tag, models.BlockRef) error { return nil }
func (NoopSink) SetHead(HeadSource) error         { return nil }

package upstream

import (
	"context"

	"github.com/nodefleet/multistream/core/service"
	"github.com/nodefleet/multistream/core/store/models"
)

// IngressReader dispatches a single native JSON-RPC call directly
// against the upstream's backend, bypassing any selector. External
// collaborators (the transport layer) own the wire codec; this core
// only needs the dispatch contract.
type IngressReader interface {
	Call(ctx context.Context, method string, params []interface{}) (json []byte, err error)
}

// Settings carries identity fields an upstream reports once at
// connect time and that rarely change afterwards.
type Settings struct {
	NodeID        byte
	ClientVersion string // empty means unknown
}

// Options carries operator-assigned configuration consumed from the
// embedding application's config loader.
type Options struct {
	Labels   map[string]string
	Priority int
}

// Matcher is a predicate over Upstream used by IsAvailableFor
// and by the selector pipeline. Concrete matchers (label, capability,
// AND/OR composites) live in core/services/selector; the interface is
// declared here because Upstream itself depends on it.
type Matcher interface {
	Matches(u Upstream) bool
}

// Upstream is the polymorphic handle to a single backend. NativeRpc,
// GrpcPeer drivers, and Multistream itself (via recursive composition)
// all implement this contract.
type Upstream interface {
	service.Service

	ID() string
	Settings() Settings
	Options() Options
	Role() Role

	IsAvailable() bool
	Status() Availability
	// ObserveStatus replays the current status immediately, then
	// emits on every change. Never blocks the caller.
	ObserveStatus(ctx context.Context) <-chan Availability

	Head() Head
	CurrentHeight() (uint64, error)

	IngressReader() (IngressReader, error)
	Methods() map[string]struct{}

	Lag() int64
	SetLag(int64)

	// IsAvailableFor reports whether m accepts this upstream.
	IsAvailableFor(m Matcher) bool
	Capabilities() CapabilitySet

	LowerBounds() map[models.LowerBoundType]models.LowerBoundData
	Finalizations() map[models.FinalizationType]models.FinalizationData

	// ObserveState emits UpstreamChangeEvents about this upstream
	// (ADDED, UPDATED, REMOVED, ...). A Multistream used as an
	// Upstream returns a closed, empty channel here to break the
	// recursion it would otherwise create.
	ObserveState(ctx context.Context) <-chan ChangeEvent
}

// Head is the minimal surface Upstream.Head() exposes; the full
// contract (Flux, Current with timeout) lives in
// core/services/upstream/head to avoid a dependency cycle between the
// Upstream interface and its aggregation logic.
type Head interface {
	// Current returns the current best BlockRef, or nil if none has
	// been promoted yet.
	Current() *models.BlockRef
	// CurrentHeight blocks until a block has been promoted or ctx is
	// done, whichever comes first; a done ctx surfaces ErrHeadTimeout.
	CurrentHeight(ctx context.Context) (uint64, error)
	// Flux is the lazy, monotonically-non-decreasing-by-weight
	// sequence of promoted blocks, restartable per subscriber.
	Flux() <-chan models.BlockRef
}

package upstream

import "errors"

// Sentinel error taxonomy for the upstream/multistream boundary.
// These are sentinels, not typed errors: callers compare with
// errors.Is; additional context is attached with
// github.com/pkg/errors.Wrap at the call site.
var (
	// ErrNotInitialized surfaces when methods/state are queried
	// before the first upstream has ever been added.
	ErrNotInitialized = errors.New("multistream: not initialized, no upstream added yet")

	// ErrUpstreamUnavailable surfaces when every candidate upstream
	// was filtered out or is failing.
	ErrUpstreamUnavailable = errors.New("multistream: no available upstream")

	// ErrHeadTimeout surfaces when the current-block accessor
	// exceeded its caller-supplied duration.
	ErrHeadTimeout = errors.New("multistream: head timeout, height unknown")

	// ErrHeadFault surfaces a non-timeout head processing failure.
	// It does not tear down the aggregate head stream.
	ErrHeadFault = errors.New("multistream: head processing fault")

	// ErrEmissionContention surfaces a non-serialized emission
	// failure on a broadcast sink; callers retry in place.
	ErrEmissionContention = errors.New("multistream: event sink emission contention")

	// ErrEmissionFatal surfaces any other emission failure; the
	// event is logged and dropped.
	ErrEmissionFatal = errors.New("multistream: event sink emission failed")

	// ErrUnsupported surfaces for operations meaningless at the
	// multistream level; Multistream.IngressReader returns it.
	// Multistream.Settings and Options return zero values instead.
	ErrUnsupported = errors.New("multistream: operation unsupported at aggregate level")
)

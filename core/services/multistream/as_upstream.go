package multistream

import (
	"context"

	"github.com/nodefleet/multistream/core/services/upstream"
)

// Multistream implements upstream.Upstream so multistreams can nest:
// one Multistream can be added as an upstream of another, for fan-out
// topologies. IngressReader, meaningful only at a single-backend level,
// raises ErrUnsupported; Settings and Options, whose signatures carry
// no error, return zero values instead. ObserveState returns a closed, empty
// channel to break the cycle a Multistream re-emitting its own change
// events about itself would otherwise create.
var _ upstream.Upstream = (*Multistream)(nil)

func (m *Multistream) Settings() upstream.Settings {
	return upstream.Settings{}
}

func (m *Multistream) Options() upstream.Options {
	return upstream.Options{}
}

func (m *Multistream) Role() upstream.Role {
	return upstream.RolePrimary
}

func (m *Multistream) IsAvailable() bool {
	return m.Status() != upstream.UNAVAILABLE
}

func (m *Multistream) IsAvailableFor(matcher upstream.Matcher) bool {
	if matcher == nil {
		return m.IsAvailable()
	}
	return matcher.Matches(m)
}

// IngressReader is unsupported at the multistream level: calls are
// routed through the selector pipeline to a single member upstream,
// never read directly off the aggregate.
func (m *Multistream) IngressReader() (upstream.IngressReader, error) {
	return nil, upstream.ErrUnsupported
}

func (m *Multistream) Lag() int64 { return 0 }

// SetLag is a no-op; an aggregate has no meaningful lag of its own.
func (m *Multistream) SetLag(int64) {}

// CurrentHeight is the Upstream-level convenience accessor; it reads
// the aggregate head's already-known current height, if any.
func (m *Multistream) CurrentHeight() (uint64, error) {
	if c := m.aggregateHead.Current(); c != nil {
		return c.Height, nil
	}
	return 0, upstream.ErrHeadTimeout
}

// ObserveState returns a closed, empty channel: a Multistream used as
// an Upstream never re-emits change events about itself.
func (m *Multistream) ObserveState(ctx context.Context) <-chan upstream.ChangeEvent {
	ch := make(chan upstream.ChangeEvent)
	close(ch)
	return ch
}

// Package upstreamtest provides a minimal, fully-wired Upstream
// double for tests across the core, centralizing test doubles instead
// of letting every _test.go hand-roll its own.
package upstreamtest

import (
	"context"
	"sync"

	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/services/upstream/head"
	"github.com/nodefleet/multistream/core/store/models"
)

var _ upstream.Upstream = (*Fake)(nil)

// Fake is a fully-wired, in-memory Upstream: a real *head.Head backs
// Head()/CurrentHeight(), and Status/Lag/Methods/Capabilities are
// plain settable fields guarded by a mutex.
type Fake struct {
	IDValue      string
	RoleValue    upstream.Role
	OptionsValue upstream.Options
	CallFunc     func(ctx context.Context, method string, params []interface{}) ([]byte, error)

	mu           sync.RWMutex
	status       upstream.Availability
	lag          int64
	available    bool
	methods      map[string]struct{}
	capabilities upstream.CapabilitySet

	h *head.Head

	statusCh chan upstream.Availability
	stateCh  chan upstream.ChangeEvent
}

func New(id string, role upstream.Role) *Fake {
	return &Fake{
		IDValue:      id,
		RoleValue:    role,
		available:    true,
		status:       upstream.OK,
		methods:      map[string]struct{}{},
		capabilities: upstream.CapabilitySet{},
		h:            head.New(),
		statusCh:     make(chan upstream.Availability, 8),
		stateCh:      make(chan upstream.ChangeEvent, 8),
	}
}

func (f *Fake) Start() error  { return nil }
func (f *Fake) Close() error  { return nil }
func (f *Fake) Healthy() error { return nil }
func (f *Fake) Ready() error   { return nil }
func (f *Fake) IsRunning() bool { return true }

func (f *Fake) ID() string                 { return f.IDValue }
func (f *Fake) Settings() upstream.Settings { return upstream.Settings{} }
func (f *Fake) Options() upstream.Options   { return f.OptionsValue }
func (f *Fake) Role() upstream.Role         { return f.RoleValue }

func (f *Fake) IsAvailable() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.available
}

func (f *Fake) SetAvailable(v bool) {
	f.mu.Lock()
	f.available = v
	f.mu.Unlock()
}

func (f *Fake) Status() upstream.Availability {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

// SetStatus updates the reported status and publishes it on the
// ObserveStatus channel, mirroring how a real driver reacts to a
// connection-state change.
func (f *Fake) SetStatus(s upstream.Availability) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
	select {
	case f.statusCh <- s:
	default:
	}
}

func (f *Fake) ObserveStatus(ctx context.Context) <-chan upstream.Availability {
	out := make(chan upstream.Availability, 1)
	out <- f.Status()
	go func() {
		defer close(out)
		for {
			select {
			case v, ok := <-f.statusCh:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *Fake) Head() upstream.Head { return f.h }

// PromoteHead pushes ref through the real Head, for tests that want
// this Fake to participate in aggregate-head following.
func (f *Fake) PromoteHead(ref models.BlockRef) bool { return f.h.Update(ref) }

func (f *Fake) CurrentHeight() (uint64, error) {
	if c := f.h.Current(); c != nil {
		return c.Height, nil
	}
	return 0, upstream.ErrHeadTimeout
}

func (f *Fake) IngressReader() (upstream.IngressReader, error) { return f, nil }

func (f *Fake) Call(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	if f.CallFunc != nil {
		return f.CallFunc(ctx, method, params)
	}
	return []byte(`"ok"`), nil
}

func (f *Fake) Methods() map[string]struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]struct{}, len(f.methods))
	for k := range f.methods {
		out[k] = struct{}{}
	}
	return out
}

func (f *Fake) SetMethods(methods ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = make(map[string]struct{}, len(methods))
	for _, m := range methods {
		f.methods[m] = struct{}{}
	}
}

func (f *Fake) Lag() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lag
}

func (f *Fake) SetLag(v int64) {
	f.mu.Lock()
	f.lag = v
	f.mu.Unlock()
}

func (f *Fake) IsAvailableFor(m upstream.Matcher) bool {
	if m == nil {
		return true
	}
	return m.Matches(f)
}

func (f *Fake) Capabilities() upstream.CapabilitySet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.capabilities
}

func (f *Fake) SetCapabilities(caps ...upstream.Capability) {
	f.mu.Lock()
	f.capabilities = upstream.NewCapabilitySet(caps...)
	f.mu.Unlock()
}

func (f *Fake) LowerBounds() map[models.LowerBoundType]models.LowerBoundData {
	return map[models.LowerBoundType]models.LowerBoundData{}
}

func (f *Fake) Finalizations() map[models.FinalizationType]models.FinalizationData {
	return map[models.FinalizationType]models.FinalizationData{}
}

func (f *Fake) ObserveState(ctx context.Context) <-chan upstream.ChangeEvent {
	out := make(chan upstream.ChangeEvent, 1)
	go func() {
		defer close(out)
		for {
			select {
			case v, ok := <-f.stateCh:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// PushState publishes a ChangeEvent about this Fake to its own
// ObserveState stream, e.g. to simulate the OBSERVED -> ADDED
// transition a real driver makes once.
func (f *Fake) PushState(ev upstream.ChangeEvent) {
	select {
	case f.stateCh <- ev:
	default:
	}
}

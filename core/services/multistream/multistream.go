// Package multistream implements the orchestrator and state-reduction
// core: the subsystem that owns the set of upstreams for one chain,
// aggregates their availability and heads, routes calls through the
// selector pipeline, and fans out change events to subscribers under
// full concurrency.
//
// The event ingress loop is a utils.Mailbox-fed, single-goroutine
// consumer that owns all membership mutation. Reads are served from a
// membership snapshot copied under a read lock; they are not lock-free.
package multistream

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/services/cache"
	"github.com/nodefleet/multistream/core/services/metrics"
	"github.com/nodefleet/multistream/core/services/selector"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/services/upstream/head"
	"github.com/nodefleet/multistream/core/store/models"
	"github.com/nodefleet/multistream/core/utils"
)

const (
	printStatusInterval    = 30 * time.Second
	printStatusMinInterval = 15 * time.Second
	maxRotationSeed        = math.MaxInt32 / 2
)

// Multistream is the per-chain aggregator exposing the Upstream
// interface over a dynamic set of upstreams.
type Multistream struct {
	utils.StartStopOnce

	chain   models.ChainRef
	metrics metrics.Registrar
	cache   cache.Sink

	mu            sync.RWMutex
	upstreamsByID map[string]upstream.Upstream
	snapshot      []upstream.Upstream

	reducer *reducer
	best    *bestAvailability

	aggregateHead *head.Aggregate
	lagObserver   *head.LagObserver

	// firstUpstream gates the status-print loop until at least one
	// upstream has been added, so it never prints a status line for a
	// chain with zero members.
	firstUpstream utils.DependentAwaiter

	events *utils.Mailbox

	addedStream    *utils.Broadcast[upstream.ChangeEvent]
	removedStream  *utils.Broadcast[upstream.ChangeEvent]
	updatedStream  *utils.Broadcast[upstream.ChangeEvent]
	observedStream *utils.Broadcast[upstream.ChangeEvent]
	statusStream   *utils.Broadcast[upstream.Availability]
	stateEvents    *utils.Broadcast[StateEvent]

	subsMu        sync.Mutex
	subscriptions map[string]context.CancelFunc

	rotationSeed atomic.Uint32

	chStop chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Multistream with no members. sink and reg may be
// nil, in which case cache.NoopSink and a no-op metrics.Registrar are
// used.
func New(chain models.ChainRef, sink cache.Sink, reg metrics.Registrar) *Multistream {
	if sink == nil {
		sink = cache.NoopSink{}
	}
	if reg == nil {
		reg = metrics.NoopRegistrar{}
	}
	firstUpstream := utils.NewDependentAwaiter()
	firstUpstream.AddDependents(1)
	m := &Multistream{
		chain:          chain,
		metrics:        reg,
		cache:          sink,
		upstreamsByID:  map[string]upstream.Upstream{},
		reducer:        newReducer(),
		best:           newBestAvailability(),
		aggregateHead:  head.NewAggregate(sink),
		firstUpstream:  firstUpstream,
		events:         utils.NewMailbox(0),
		addedStream:    utils.NewBroadcast[upstream.ChangeEvent](4),
		removedStream:  utils.NewBroadcast[upstream.ChangeEvent](4),
		updatedStream:  utils.NewBroadcast[upstream.ChangeEvent](4),
		observedStream: utils.NewBroadcast[upstream.ChangeEvent](4),
		statusStream:   utils.NewBroadcast[upstream.Availability](4),
		stateEvents:    utils.NewBroadcast[StateEvent](4),
		subscriptions:  map[string]context.CancelFunc{},
		chStop:         make(chan struct{}),
	}
	return m
}

func (m *Multistream) ID() string { return m.chain.MultistreamID() }

// Chain reports the chain this Multistream aggregates.
func (m *Multistream) Chain() models.ChainRef { return m.chain }

// Start is idempotent; it is also triggered implicitly on the first
// ADDED event if not already started.
func (m *Multistream) Start() error {
	return m.StartOnce("Multistream", func() error {
		m.wg.Add(2)
		go m.eventLoop()
		go m.startStatusPrintLoop()
		return nil
	})
}

// Close disposes all subscriptions, stops the head and lag observer,
// and emits a terminal UNAVAILABLE on the status stream.
func (m *Multistream) Close() error {
	return m.StopOnce("Multistream", func() error {
		close(m.chStop)
		m.wg.Wait()

		var errs error
		g, _ := errgroup.WithContext(context.Background())
		m.subsMu.Lock()
		cancels := make([]context.CancelFunc, 0, len(m.subscriptions))
		for _, cancel := range m.subscriptions {
			cancels = append(cancels, cancel)
		}
		m.subscriptions = map[string]context.CancelFunc{}
		m.subsMu.Unlock()

		for _, cancel := range cancels {
			cancel := cancel
			g.Go(func() error {
				cancel()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			errs = multierr.Append(errs, err)
		}

		m.aggregateHead.Close()
		if m.lagObserver != nil {
			m.lagObserver.Stop()
		}

		m.statusStream.Publish(upstream.UNAVAILABLE)
		m.statusStream.Close()
		m.addedStream.Close()
		m.removedStream.Close()
		m.updatedStream.Close()
		m.observedStream.Close()
		m.stateEvents.Close()

		return errs
	})
}

func (m *Multistream) Healthy() error {
	if m.StartStopOnce.Stopped() {
		return upstream.ErrUpstreamUnavailable
	}
	return nil
}

func (m *Multistream) Ready() error {
	if _, ready := m.reducer.snapshot(); !ready {
		return upstream.ErrNotInitialized
	}
	return nil
}

// PushEvent feeds an external UpstreamChangeEvent into the ingress
// sink. Events for a chain other than this Multistream's are silently
// ignored, checked here before mailbox delivery so a busy wrong-chain
// producer can't starve this instance's mailbox.
func (m *Multistream) PushEvent(ev upstream.ChangeEvent) {
	if ev.Chain.ChainCode != m.chain.ChainCode {
		return
	}
	if ev.Type == upstream.EventAdded && !m.StartStopOnce.Started() {
		if err := m.Start(); err != nil {
			logger.Errorw("Multistream: failed to auto-start on first event", "chain", m.chain, "err", err)
		}
	}
	if wasOverCapacity := m.events.Deliver(ev); wasOverCapacity {
		logger.Errorw("Multistream: event mailbox over capacity, oldest unprocessed event dropped",
			"chain", m.chain)
	}
}

func (m *Multistream) eventLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.events.Notify():
			for {
				x, ok := m.events.Retrieve()
				if !ok {
					break
				}
				ev, ok := x.(upstream.ChangeEvent)
				if !ok {
					logger.Errorf("Multistream: expected upstream.ChangeEvent, got %T", x)
					continue
				}
				m.dispatch(ev)
			}
		case <-m.chStop:
			return
		}
	}
}

// dispatch applies one ingress event to membership and derived state.
func (m *Multistream) dispatch(ev upstream.ChangeEvent) {
	if ev.Chain.ChainCode != m.chain.ChainCode {
		return
	}

	switch ev.Type {
	case upstream.EventAdded:
		if added := m.addUpstream(ev.Upstream); added {
			m.addedStream.Publish(ev)
			m.rederiveState()
		}
	case upstream.EventUpdated:
		m.rederiveState()
		m.updatedStream.Publish(ev)
	case upstream.EventRemoved:
		m.removeUpstream(ev.Upstream.ID(), true)
	case upstream.EventFatalSettingsErrorRemoved:
		m.removeUpstream(ev.Upstream.ID(), false)
	case upstream.EventObserved:
		m.observedStream.Publish(ev)
		m.watchObservedUntilAdded(ev.Upstream)
	case upstream.EventRevalidated:
		// acknowledged, no state mutation required.
	default:
		logger.Warnw("Multistream: unknown event type", "type", ev.Type)
	}
}

// watchObservedUntilAdded watches an observed-but-not-yet-added
// upstream's own event stream until it emits ADDED for itself, then
// relays that as an ADDED event into this Multistream.
func (m *Multistream) watchObservedUntilAdded(u upstream.Upstream) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		for {
			select {
			case ev, ok := <-u.ObserveState(ctx):
				if !ok {
					return
				}
				if ev.Type == upstream.EventAdded {
					m.PushEvent(upstream.ChangeEvent{Chain: m.chain, Upstream: u, Type: upstream.EventAdded})
					return
				}
			case <-ctx.Done():
				return
			case <-m.chStop:
				return
			}
		}
	}()
}

// addUpstream returns true iff u.ID() is new. Duplicate add is a no-op.
func (m *Multistream) addUpstream(u upstream.Upstream) bool {
	m.mu.Lock()
	if _, exists := m.upstreamsByID[u.ID()]; exists {
		m.mu.Unlock()
		return false
	}
	m.upstreamsByID[u.ID()] = u
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.RegisterUpstream(m.chain, u.ID())
	m.aggregateHead.Follow(context.Background(), u.ID(), u.Head())
	m.primeCache(u)
	m.firstUpstream.DependentReady()
	m.subscribeUpstream(u)
	m.reconcileLagObserver(snap)
	return true
}

// primeCache hands the cache sink the newly added upstream's current
// tip immediately, rather than waiting for its next promotion: a
// freshly added upstream that is already caught up would otherwise
// leave the cache stale until it happens to promote again.
func (m *Multistream) primeCache(u upstream.Upstream) {
	cur := u.Head().Current()
	if cur == nil {
		return
	}
	if err := m.cache.Cache(cache.TagLatest, *cur); err != nil {
		logger.Warnw("Multistream: failed to prime cache from newly added upstream",
			"upstream", u.ID(), "err", err)
	}
}

// removeUpstream removes by id; if stopUpstream, calls u.Close().
func (m *Multistream) removeUpstream(id string, stopUpstream bool) bool {
	m.mu.Lock()
	u, exists := m.upstreamsByID[id]
	if !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.upstreamsByID, id)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.aggregateHead.Unfollow(id)
	m.unsubscribeUpstream(id)
	m.metrics.DeregisterUpstream(m.chain, id)
	if agg, changed := m.best.Forget(id); changed {
		m.statusStream.Publish(agg)
	}

	if stopUpstream {
		if err := u.Close(); err != nil {
			logger.Warnw("Multistream: error stopping removed upstream", "upstream", id, "err", err)
		}
	}

	m.reconcileLagObserver(snap)
	m.rederiveState()
	m.removedStream.Publish(upstream.ChangeEvent{Chain: m.chain, Upstream: u, Type: upstream.EventRemoved})
	return true
}

func (m *Multistream) snapshotLocked() []upstream.Upstream {
	snap := make([]upstream.Upstream, 0, len(m.upstreamsByID))
	for _, u := range m.upstreamsByID {
		snap = append(snap, u)
	}
	m.snapshot = snap
	return snap
}

// Upstreams returns a consistent, read-only snapshot of current
// membership.
func (m *Multistream) Upstreams() []upstream.Upstream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]upstream.Upstream, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}

// reconcileLagObserver keeps the lag observer's lifecycle matched to
// membership size: at size 1, dispose any observer and force lag to
// 0 (a single upstream can't be behind anything); at size >= 2,
// create one if absent.
func (m *Multistream) reconcileLagObserver(snap []upstream.Upstream) {
	switch {
	case len(snap) <= 1:
		if m.lagObserver != nil {
			m.lagObserver.Stop()
			m.lagObserver = nil
		}
		if len(snap) == 1 {
			snap[0].SetLag(0)
		}
	case m.lagObserver == nil:
		m.lagObserver = head.NewLagObserver(snap)
	}
}

var defaultEgress = NewEgressSubscription(TopicNewHeads)

func (m *Multistream) rederiveState() {
	snap := m.Upstreams()
	ev, changed := m.reducer.updateState(m.chain, snap, defaultEgress)
	if changed {
		m.stateEvents.Publish(ev)
	}
}

// nextRotationSeed increments and wraps at math.MaxInt32/2, well
// before the uint32 counter could ever overflow.
func (m *Multistream) nextRotationSeed() uint32 {
	for {
		next := m.rotationSeed.Add(1)
		if next > maxRotationSeed {
			if m.rotationSeed.CompareAndSwap(next, 0) {
				return 0
			}
			continue
		}
		return next - 1
	}
}

// GetApiSource returns a FilteredApis bound to the current upstream
// snapshot and the next rotation seed.
func (m *Multistream) GetApiSource(filter selector.Filter) *selector.FilteredApis {
	seed := m.nextRotationSeed()
	return selector.NewFilteredApis(m.chain, m.Upstreams(), filter, seed)
}

// ObserveStatus merges each upstream's status into the
// FilterBestAvailability reducer, deduplicating consecutive equal
// values, and terminates with UNAVAILABLE when stop is signalled.
func (m *Multistream) ObserveStatus(ctx context.Context) <-chan upstream.Availability {
	ch, unsubscribe := m.statusStream.Subscribe()
	out := make(chan upstream.Availability, 1)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case v, ok := <-ch:
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
			case <-m.chStop:
				select {
				case out <- upstream.UNAVAILABLE:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out
}

// ObserveStateEvents returns the MultistreamStateEvent stream the
// orchestrator publishes on state re-derivation.
func (m *Multistream) ObserveStateEvents(ctx context.Context) <-chan StateEvent {
	ch, unsubscribe := m.stateEvents.Subscribe()
	out := make(chan StateEvent, 1)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case v, ok := <-ch:
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
			case <-m.chStop:
				return
			}
		}
	}()
	return out
}

// Head returns the aggregate Head following the heaviest tip among
// all members.
func (m *Multistream) Head() upstream.Head {
	return m.aggregateHead
}

// HeadFor returns an aggregate Head following only upstreams the
// matcher accepts, as of the current membership snapshot.
func (m *Multistream) HeadFor(matcher upstream.Matcher) upstream.Head {
	agg := head.NewAggregate(m.cache)
	for _, u := range m.Upstreams() {
		if matcher == nil || matcher.Matches(u) {
			agg.Follow(context.Background(), u.ID(), u.Head())
		}
	}
	return agg
}

// TryProxySubscribe is the optional native-subscription pass-through;
// by default it declines (nil, nil).
func (m *Multistream) TryProxySubscribe(matcher upstream.Matcher, req interface{}) (interface{}, error) {
	return nil, nil
}

func (m *Multistream) subscribeUpstream(u upstream.Upstream) {
	ctx, cancel := context.WithCancel(context.Background())
	m.subsMu.Lock()
	m.subscriptions[u.ID()] = cancel
	m.subsMu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		statusCh := u.ObserveStatus(ctx)
		stateCh := u.ObserveState(ctx)
		for {
			select {
			case status, ok := <-statusCh:
				if !ok {
					statusCh = nil
					break
				}
				if agg, changed := m.best.Update(u.ID(), status); changed {
					m.statusStream.Publish(agg)
				}
				// re-derive State (and so Status()) on the event loop.
				m.PushEvent(upstream.ChangeEvent{Chain: m.chain, Upstream: u, Type: upstream.EventUpdated})
			case ev, ok := <-stateCh:
				if !ok {
					stateCh = nil
					break
				}
				m.PushEvent(ev)
				if ev.Type == upstream.EventRemoved && !u.IsRunning() {
					return
				}
			case <-ctx.Done():
				return
			case <-m.chStop:
				return
			}
			if statusCh == nil && stateCh == nil {
				return
			}
		}
	}()
}

func (m *Multistream) unsubscribeUpstream(id string) {
	m.subsMu.Lock()
	cancel, ok := m.subscriptions[id]
	if ok {
		delete(m.subscriptions, id)
	}
	m.subsMu.Unlock()
	if ok {
		cancel()
	}
}

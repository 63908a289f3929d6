// Package nativerpc implements the NativeRpc Upstream variant: a
// driver that polls a single JSON-RPC endpoint directly, reconnecting
// with backoff whenever the dial or a poll call fails.
package nativerpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/tevino/abool"
	"go.uber.org/atomic"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/service"
	"github.com/nodefleet/multistream/core/services/config"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/services/upstream/head"
	"github.com/nodefleet/multistream/core/store/models"
	"github.com/nodefleet/multistream/core/utils"
)

var _ upstream.Upstream = (*NativeRpc)(nil)
var _ upstream.IngressReader = (*NativeRpc)(nil)

// Config is the boundary-input configuration a NativeRpc is built
// from; it is consumed here, never produced or persisted.
type Config struct {
	ID           string
	Chain        models.ChainRef
	Endpoint     string
	Role         upstream.Role
	Options      upstream.Options
	PollInterval time.Duration
}

// ConfigFromUpstreamOptions derives a Config from the shared
// per-upstream boundary configuration, plus the driver-specific
// fields config.UpstreamOptions doesn't carry (chain, endpoint, poll
// interval).
func ConfigFromUpstreamOptions(o config.UpstreamOptions, chain models.ChainRef, endpoint string, pollInterval time.Duration) Config {
	return Config{
		ID:           o.ID,
		Chain:        chain,
		Endpoint:     endpoint,
		Role:         o.Role,
		Options:      upstream.Options{Labels: o.Labels, Priority: o.Priority},
		PollInterval: pollInterval,
	}
}

// NativeRpc polls Endpoint for the chain tip over JSON-RPC and
// dispatches NativeCall directly against it.
type NativeRpc struct {
	utils.StartStopOnce

	id       string
	chain    models.ChainRef
	endpoint string
	role     upstream.Role
	options  upstream.Options

	pollInterval time.Duration

	mu       sync.RWMutex
	client   *ethrpc.Client
	settings upstream.Settings

	connected    *abool.AtomicBool
	status       atomic.Int32
	lag          atomic.Int64
	addedEmitted atomic.Bool
	methods      map[string]struct{}
	methodsMu    sync.RWMutex

	head *head.Head

	statusStream *utils.Broadcast[upstream.Availability]
	stateStream  *utils.Broadcast[upstream.ChangeEvent]

	chStop chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config) *NativeRpc {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &NativeRpc{
		id:           cfg.ID,
		chain:        cfg.Chain,
		endpoint:     cfg.Endpoint,
		role:         cfg.Role,
		options:      cfg.Options,
		pollInterval: pollInterval,
		connected:    abool.New(),
		methods:      map[string]struct{}{},
		head:         head.New(),
		statusStream: utils.NewBroadcast[upstream.Availability](4),
		stateStream:  utils.NewBroadcast[upstream.ChangeEvent](4),
		chStop:       make(chan struct{}),
	}
}

func (n *NativeRpc) ID() string                { return n.id }
func (n *NativeRpc) Role() upstream.Role       { return n.role }
func (n *NativeRpc) Options() upstream.Options { return n.options }
func (n *NativeRpc) Settings() upstream.Settings {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.settings
}

func (n *NativeRpc) Start() error {
	return n.StartOnce("NativeRpc", func() error {
		n.setStatus(upstream.SYNCING)
		n.stateStream.Publish(upstream.ChangeEvent{Chain: n.chain, Upstream: n, Type: upstream.EventObserved})
		n.wg.Add(1)
		go n.pollLoop()
		return nil
	})
}

func (n *NativeRpc) Close() error {
	return n.StopOnce("NativeRpc", func() error {
		close(n.chStop)
		n.wg.Wait()
		n.head.Close()
		n.stateStream.Publish(upstream.ChangeEvent{Chain: n.chain, Upstream: n, Type: upstream.EventRemoved})
		n.statusStream.Publish(upstream.UNAVAILABLE)
		n.statusStream.Close()
		n.stateStream.Close()
		n.mu.Lock()
		if n.client != nil {
			n.client.Close()
		}
		n.mu.Unlock()
		return nil
	})
}

func (n *NativeRpc) Healthy() error {
	if n.Status() == upstream.UNAVAILABLE {
		return upstream.ErrUpstreamUnavailable
	}
	return nil
}

func (n *NativeRpc) Ready() error {
	if n.head.Current() == nil {
		return upstream.ErrNotInitialized
	}
	return nil
}

func (n *NativeRpc) IsAvailable() bool { return n.connected.IsSet() }

func (n *NativeRpc) Status() upstream.Availability {
	return upstream.Availability(n.status.Load())
}

func (n *NativeRpc) setStatus(a upstream.Availability) {
	if n.status.Swap(int32(a)) != int32(a) {
		n.statusStream.Publish(a)
	}
}

func (n *NativeRpc) ObserveStatus(ctx context.Context) <-chan upstream.Availability {
	ch, unsubscribe := n.statusStream.Subscribe()
	out := make(chan upstream.Availability, 1)
	out <- n.Status()
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
			case <-n.chStop:
				return
			}
		}
	}()
	return out
}

func (n *NativeRpc) ObserveState(ctx context.Context) <-chan upstream.ChangeEvent {
	ch, unsubscribe := n.stateStream.Subscribe()
	out := make(chan upstream.ChangeEvent, 1)
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
			case <-n.chStop:
				return
			}
		}
	}()
	return out
}

func (n *NativeRpc) Head() upstream.Head { return n.head }

func (n *NativeRpc) CurrentHeight() (uint64, error) {
	if c := n.head.Current(); c != nil {
		return c.Height, nil
	}
	return 0, upstream.ErrHeadTimeout
}

func (n *NativeRpc) IngressReader() (upstream.IngressReader, error) { return n, nil }

func (n *NativeRpc) Call(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	n.mu.RLock()
	client := n.client
	n.mu.RUnlock()
	if client == nil {
		return nil, upstream.ErrUpstreamUnavailable
	}
	var raw json.RawMessage
	// CallContext accepts ...interface{}; a slice is spread explicitly
	// so callers can still pass a nil/empty params slice.
	if err := client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	return raw, nil
}

func (n *NativeRpc) Methods() map[string]struct{} {
	n.methodsMu.RLock()
	defer n.methodsMu.RUnlock()
	out := make(map[string]struct{}, len(n.methods))
	for k := range n.methods {
		out[k] = struct{}{}
	}
	return out
}

func (n *NativeRpc) IsAvailableFor(m upstream.Matcher) bool {
	if m == nil {
		return true
	}
	return m.Matches(n)
}

func (n *NativeRpc) Capabilities() upstream.CapabilitySet {
	return upstream.NewCapabilitySet(upstream.CapabilityRPC, upstream.CapabilityBalance)
}

func (n *NativeRpc) LowerBounds() map[models.LowerBoundType]models.LowerBoundData {
	return map[models.LowerBoundType]models.LowerBoundData{}
}

func (n *NativeRpc) Finalizations() map[models.FinalizationType]models.FinalizationData {
	return map[models.FinalizationType]models.FinalizationData{}
}

func (n *NativeRpc) Lag() int64     { return n.lag.Load() }
func (n *NativeRpc) SetLag(v int64) { n.lag.Store(v) }

var _ service.Service = (*NativeRpc)(nil)

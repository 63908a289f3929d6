// Package grpcupstream implements the GrpcPeer Upstream variant: a
// driver that subscribes to a peer Multistream's SubscribeHead egress
// and proxies NativeCall to it, instead of talking to a chain node
// directly: dial, run until the stream errors out, reconnect with
// backoff.
package grpcupstream

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/tevino/abool"
	"go.uber.org/atomic"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/service"
	"github.com/nodefleet/multistream/core/services/config"
	"github.com/nodefleet/multistream/core/services/rpcapi"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/services/upstream/head"
	"github.com/nodefleet/multistream/core/store/models"
	"github.com/nodefleet/multistream/core/utils"
)

// Client is the minimal egress contract a GrpcPeer dials against; the
// transport layer supplies the concrete implementation over the wire
// codec, which is out of scope here.
type Client interface {
	NativeCall(ctx context.Context, req *rpcapi.NativeCallRequest, out chan<- *rpcapi.NativeCallReplyItem) error
	SubscribeHead(ctx context.Context, chain models.ChainRef, out chan<- *rpcapi.ChainHead) error
}

var _ upstream.Upstream = (*GrpcPeer)(nil)
var _ upstream.IngressReader = (*GrpcPeer)(nil)

// Config is the boundary-input configuration a GrpcPeer is built from.
type Config struct {
	ID      string
	Chain   models.ChainRef
	Client  Client
	Role    upstream.Role
	Options upstream.Options
}

// ConfigFromUpstreamOptions derives a Config from the shared
// per-upstream boundary configuration, plus the client handle that
// config.UpstreamOptions doesn't carry.
func ConfigFromUpstreamOptions(o config.UpstreamOptions, chain models.ChainRef, client Client) Config {
	return Config{
		ID:      o.ID,
		Chain:   chain,
		Client:  client,
		Role:    o.Role,
		Options: upstream.Options{Labels: o.Labels, Priority: o.Priority},
	}
}

// GrpcPeer proxies both NativeCall and the chain tip to/from another
// Multistream instance's gRPC-shaped boundary.
type GrpcPeer struct {
	utils.StartStopOnce

	id      string
	chain   models.ChainRef
	client  Client
	role    upstream.Role
	options upstream.Options

	connected    *abool.AtomicBool
	status       atomic.Int32
	lag          atomic.Int64
	addedEmitted atomic.Bool

	head *head.Head

	statusStream *utils.Broadcast[upstream.Availability]
	stateStream  *utils.Broadcast[upstream.ChangeEvent]

	chStop chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config) *GrpcPeer {
	return &GrpcPeer{
		id:           cfg.ID,
		chain:        cfg.Chain,
		client:       cfg.Client,
		role:         cfg.Role,
		options:      cfg.Options,
		connected:    abool.New(),
		head:         head.New(),
		statusStream: utils.NewBroadcast[upstream.Availability](4),
		stateStream:  utils.NewBroadcast[upstream.ChangeEvent](4),
		chStop:       make(chan struct{}),
	}
}

func (p *GrpcPeer) ID() string                  { return p.id }
func (p *GrpcPeer) Role() upstream.Role         { return p.role }
func (p *GrpcPeer) Options() upstream.Options   { return p.options }
func (p *GrpcPeer) Settings() upstream.Settings { return upstream.Settings{} }

func (p *GrpcPeer) Start() error {
	return p.StartOnce("GrpcPeer", func() error {
		p.setStatus(upstream.SYNCING)
		p.stateStream.Publish(upstream.ChangeEvent{Chain: p.chain, Upstream: p, Type: upstream.EventObserved})
		p.wg.Add(1)
		go p.resubscribeLoop()
		return nil
	})
}

func (p *GrpcPeer) Close() error {
	return p.StopOnce("GrpcPeer", func() error {
		close(p.chStop)
		p.wg.Wait()
		p.head.Close()
		p.stateStream.Publish(upstream.ChangeEvent{Chain: p.chain, Upstream: p, Type: upstream.EventRemoved})
		p.statusStream.Publish(upstream.UNAVAILABLE)
		p.statusStream.Close()
		p.stateStream.Close()
		return nil
	})
}

func (p *GrpcPeer) Healthy() error {
	if p.Status() == upstream.UNAVAILABLE {
		return upstream.ErrUpstreamUnavailable
	}
	return nil
}

func (p *GrpcPeer) Ready() error {
	if p.head.Current() == nil {
		return upstream.ErrNotInitialized
	}
	return nil
}

func (p *GrpcPeer) IsAvailable() bool { return p.connected.IsSet() }

func (p *GrpcPeer) Status() upstream.Availability {
	return upstream.Availability(p.status.Load())
}

func (p *GrpcPeer) setStatus(a upstream.Availability) {
	if p.status.Swap(int32(a)) != int32(a) {
		p.statusStream.Publish(a)
	}
}

func (p *GrpcPeer) ObserveStatus(ctx context.Context) <-chan upstream.Availability {
	ch, unsubscribe := p.statusStream.Subscribe()
	out := make(chan upstream.Availability, 1)
	out <- p.Status()
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
			case <-p.chStop:
				return
			}
		}
	}()
	return out
}

func (p *GrpcPeer) ObserveState(ctx context.Context) <-chan upstream.ChangeEvent {
	ch, unsubscribe := p.stateStream.Subscribe()
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
			case <-p.chStop:
				return
			}
		}
	}()
	return out
}

func (p *GrpcPeer) Head() upstream.Head { return p.head }

func (p *GrpcPeer) CurrentHeight() (uint64, error) {
	if c := p.head.Current(); c != nil {
		return c.Height, nil
	}
	return 0, upstream.ErrHeadTimeout
}

func (p *GrpcPeer) IngressReader() (upstream.IngressReader, error) { return p, nil }

// Call proxies a NativeCall through the peer's gRPC ingress, taking
// the first reply item; multi-item replies are a transport-level
// streaming concern the IngressReader contract doesn't expose further
// than a single []byte.
func (p *GrpcPeer) Call(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	replies := make(chan *rpcapi.NativeCallReplyItem, 1)
	req := &rpcapi.NativeCallRequest{Chain: p.chain, Method: method, Params: params}
	if err := p.client.NativeCall(ctx, req, replies); err != nil {
		return nil, err
	}
	select {
	case item := <-replies:
		if item.Err != nil {
			return nil, item.Err
		}
		return item.JSON, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *GrpcPeer) Methods() map[string]struct{} {
	return map[string]struct{}{"eth_call": {}, "eth_getBlockByNumber": {}}
}

func (p *GrpcPeer) IsAvailableFor(m upstream.Matcher) bool {
	if m == nil {
		return true
	}
	return m.Matches(p)
}

func (p *GrpcPeer) Capabilities() upstream.CapabilitySet {
	return upstream.NewCapabilitySet(upstream.CapabilityRPC, upstream.CapabilityWSHead)
}

func (p *GrpcPeer) LowerBounds() map[models.LowerBoundType]models.LowerBoundData {
	return map[models.LowerBoundType]models.LowerBoundData{}
}

func (p *GrpcPeer) Finalizations() map[models.FinalizationType]models.FinalizationData {
	return map[models.FinalizationType]models.FinalizationData{}
}

func (p *GrpcPeer) Lag() int64     { return p.lag.Load() }
func (p *GrpcPeer) SetLag(v int64) { p.lag.Store(v) }

var _ service.Service = (*GrpcPeer)(nil)

// resubscribeLoop dials SubscribeHead and reconnects with backoff on
// stream error.
func (p *GrpcPeer) resubscribeLoop() {
	defer p.wg.Done()

	bo := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		if err := p.runOneSubscription(); err != nil {
			p.connected.UnSet()
			p.setStatus(upstream.UNAVAILABLE)
			logger.Warnw("grpcupstream: subscription failed, reconnecting", "upstream", p.id, "err", err)
			select {
			case <-time.After(bo.Duration()):
			case <-p.chStop:
				return
			}
			continue
		}
		return
	}
}

func (p *GrpcPeer) runOneSubscription() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heads := make(chan *rpcapi.ChainHead, 4)
	errs := make(chan error, 1)
	go func() {
		errs <- p.client.SubscribeHead(ctx, p.chain, heads)
	}()

	p.connected.Set()
	p.setStatus(upstream.OK)

	for {
		select {
		case h, ok := <-heads:
			if !ok {
				return <-errs
			}
			ref := chainHeadToBlockRef(h)
			p.head.Update(ref)
			p.emitAddedOnce()
		case err := <-errs:
			return err
		case <-p.chStop:
			return nil
		}
	}
}

func (p *GrpcPeer) emitAddedOnce() {
	if p.addedEmitted.CompareAndSwap(false, true) {
		p.stateStream.Publish(upstream.ChangeEvent{Chain: p.chain, Upstream: p, Type: upstream.EventAdded})
	}
}

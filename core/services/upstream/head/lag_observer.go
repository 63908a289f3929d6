package head

import (
	"context"
	"sync"
	"time"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/services/upstream"
)

// readTimeout bounds how long LagObserver waits for a single
// upstream's current height before leaving its lag untouched, so a
// single slow upstream can't spuriously reset everyone else's lag.
const readTimeout = 2 * time.Second

// LagObserver computes each member's lag as max(heights) - height,
// clamped to >= 0, and pushes the result back via Upstream.SetLag.
// It is only ever active with >= 2 upstreams: a single upstream can't
// be behind anything.
type LagObserver struct {
	mu        sync.Mutex
	upstreams []upstream.Upstream
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewLagObserver starts observing immediately; callers must call Stop
// when upstream membership drops below 2.
func NewLagObserver(upstreams []upstream.Upstream) *LagObserver {
	ctx, cancel := context.WithCancel(context.Background())
	o := &LagObserver{
		upstreams: upstreams,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go o.run(ctx)
	return o
}

func (o *LagObserver) run(ctx context.Context) {
	defer close(o.done)

	triggers := make(chan struct{}, 1)
	notify := func() {
		select {
		case triggers <- struct{}{}:
		default:
		}
	}

	for _, u := range o.upstreams {
		u := u
		flux := u.Head().Flux()
		go func() {
			for {
				select {
				case _, ok := <-flux:
					if !ok {
						return
					}
					notify()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	notify() // compute an initial lag snapshot immediately

	for {
		select {
		case <-triggers:
			o.recompute(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (o *LagObserver) recompute(ctx context.Context) {
	type sample struct {
		u      upstream.Upstream
		height uint64
		ok     bool
	}
	samples := make([]sample, len(o.upstreams))
	var maxHeight uint64
	for i, u := range o.upstreams {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		height, err := u.Head().CurrentHeight(readCtx)
		cancel()
		if err != nil {
			logger.Debugw("HeadLagObserver: could not read current height, leaving lag unchanged",
				"upstream", u.ID(), "err", err)
			samples[i] = sample{u: u}
			continue
		}
		samples[i] = sample{u: u, height: height, ok: true}
		if height > maxHeight {
			maxHeight = height
		}
	}

	for _, s := range samples {
		if !s.ok {
			continue
		}
		lag := int64(0)
		if maxHeight > s.height {
			lag = int64(maxHeight - s.height)
		}
		s.u.SetLag(lag)
	}
}

// Stop disposes all subscriptions held by the observer.
func (o *LagObserver) Stop() {
	o.cancel()
	<-o.done
}

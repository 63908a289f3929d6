package rpcapi

import (
	"context"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/services/multistream"
	"github.com/nodefleet/multistream/core/services/selector"
	"github.com/nodefleet/multistream/core/services/upstream"
)

// BlockchainService is the gRPC ingress contract: a streaming
// NativeCall routed through the selector pipeline, and a
// SubscribeHead fed from the aggregate Head.
type BlockchainService interface {
	NativeCall(ctx context.Context, req *NativeCallRequest, out chan<- *NativeCallReplyItem) error
	SubscribeHead(ctx context.Context, out chan<- *ChainHead) error
}

// Handlers implements BlockchainService against a single Multistream.
type Handlers struct {
	ms *multistream.Multistream
}

func NewHandlers(ms *multistream.Multistream) *Handlers {
	return &Handlers{ms: ms}
}

var _ BlockchainService = (*Handlers)(nil)

// NativeCall walks the selector's ordered sequence until one upstream
// succeeds; an exhausted sequence without ever succeeding surfaces
// ErrUpstreamUnavailable.
func (h *Handlers) NativeCall(ctx context.Context, req *NativeCallRequest, out chan<- *NativeCallReplyItem) error {
	source := h.ms.GetApiSource(selector.NewFilter(selector.Any()))
	if source.Len() == 0 {
		return upstream.ErrUpstreamUnavailable
	}

	var lastErr error
	for {
		api, ok := source.Next()
		if !ok {
			break
		}
		json, err := api.Call(ctx, req.Method, req.Params)
		if err != nil {
			lastErr = err
			logger.Debugw("rpcapi: NativeCall attempt failed, trying next upstream",
				"upstream", api.Upstream.ID(), "method", req.Method, "err", err)
			continue
		}
		out <- &NativeCallReplyItem{JSON: json}
		return nil
	}

	if lastErr != nil {
		return lastErr
	}
	return upstream.ErrUpstreamUnavailable
}

// SubscribeHead streams the aggregate Head's promoted blocks until ctx
// is done, replaying the current head first if one has already been
// promoted.
func (h *Handlers) SubscribeHead(ctx context.Context, out chan<- *ChainHead) error {
	head := h.ms.Head()
	chain := h.ms.Chain()
	flux := head.Flux()

	if current := head.Current(); current != nil {
		item := ChainHeadFromBlockRef(chain, *current)
		select {
		case out <- &item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case ref, ok := <-flux:
			if !ok {
				return nil
			}
			item := ChainHeadFromBlockRef(chain, ref)
			select {
			case out <- &item:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

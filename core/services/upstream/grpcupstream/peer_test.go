package grpcupstream

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodefleet/multistream/core/services/config"
	"github.com/nodefleet/multistream/core/services/rpcapi"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

func TestConfigFromUpstreamOptions_CarriesSharedFields(t *testing.T) {
	chain := models.ChainRef{ChainCode: "ETH", ID: 1}
	client := &fakeClient{}
	opts := config.UpstreamOptions{
		ID:       "peer1",
		Role:     upstream.RolePrimary,
		Priority: 1,
		Labels:   map[string]string{"region": "eu"},
	}

	cfg := ConfigFromUpstreamOptions(opts, chain, client)

	assert.Equal(t, "peer1", cfg.ID)
	assert.Equal(t, chain, cfg.Chain)
	assert.Same(t, client, cfg.Client.(*fakeClient))
	assert.Equal(t, upstream.RolePrimary, cfg.Role)
	assert.Equal(t, 1, cfg.Options.Priority)
	assert.Equal(t, "eu", cfg.Options.Labels["region"])
}

type fakeClient struct {
	nativeCallFunc    func(ctx context.Context, req *rpcapi.NativeCallRequest, out chan<- *rpcapi.NativeCallReplyItem) error
	subscribeHeadFunc func(ctx context.Context, chain models.ChainRef, out chan<- *rpcapi.ChainHead) error
}

func (f *fakeClient) NativeCall(ctx context.Context, req *rpcapi.NativeCallRequest, out chan<- *rpcapi.NativeCallReplyItem) error {
	return f.nativeCallFunc(ctx, req, out)
}

func (f *fakeClient) SubscribeHead(ctx context.Context, chain models.ChainRef, out chan<- *rpcapi.ChainHead) error {
	return f.subscribeHeadFunc(ctx, chain, out)
}

func TestGrpcPeer_Call_ProxiesThroughClient(t *testing.T) {
	client := &fakeClient{
		nativeCallFunc: func(ctx context.Context, req *rpcapi.NativeCallRequest, out chan<- *rpcapi.NativeCallReplyItem) error {
			out <- &rpcapi.NativeCallReplyItem{JSON: []byte(`"pong"`)}
			return nil
		},
		subscribeHeadFunc: func(ctx context.Context, chain models.ChainRef, out chan<- *rpcapi.ChainHead) error {
			<-ctx.Done()
			return nil
		},
	}
	p := New(Config{ID: "peer", Client: client, Role: upstream.RolePrimary})

	json, err := p.Call(context.Background(), "eth_call", nil)
	require.NoError(t, err)
	assert.Equal(t, `"pong"`, string(json))
}

func TestGrpcPeer_FollowsSubscribedHead(t *testing.T) {
	chain := models.ChainRef{ChainCode: "ETH", ID: 1}
	client := &fakeClient{
		subscribeHeadFunc: func(ctx context.Context, c models.ChainRef, out chan<- *rpcapi.ChainHead) error {
			wire := rpcapi.ChainHeadFromBlockRef(c, models.BlockRef{Height: 42, TotalDifficulty: big.NewInt(42)})
			select {
			case out <- &wire:
			case <-ctx.Done():
			}
			<-ctx.Done()
			return nil
		},
	}
	p := New(Config{ID: "peer", Chain: chain, Client: client, Role: upstream.RolePrimary})
	require.NoError(t, p.Start())
	defer p.Close()

	require.Eventually(t, func() bool {
		c := p.Head().Current()
		return c != nil && c.Height == 42
	}, time.Second, 5*time.Millisecond)
}

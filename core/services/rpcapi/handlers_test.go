package rpcapi_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodefleet/multistream/core/services/multistream"
	"github.com/nodefleet/multistream/core/services/rpcapi"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/services/upstream/upstreamtest"
	"github.com/nodefleet/multistream/core/store/models"
)

func testChain() models.ChainRef { return models.ChainRef{ChainCode: "ETH", ID: 1} }

func addUpstream(t *testing.T, m *multistream.Multistream, u upstream.Upstream) {
	t.Helper()
	m.PushEvent(upstream.ChangeEvent{Chain: testChain(), Upstream: u, Type: upstream.EventAdded})
	require.Eventually(t, func() bool {
		for _, got := range m.Upstreams() {
			if got.ID() == u.ID() {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestHandlers_NativeCall_Succeeds(t *testing.T) {
	m := multistream.New(testChain(), nil, nil)
	require.NoError(t, m.Start())
	defer m.Close()

	u := upstreamtest.New("u1", upstream.RolePrimary)
	u.CallFunc = func(ctx context.Context, method string, params []interface{}) ([]byte, error) {
		return []byte(`"result"`), nil
	}
	addUpstream(t, m, u)

	h := rpcapi.NewHandlers(m)
	out := make(chan *rpcapi.NativeCallReplyItem, 1)
	err := h.NativeCall(context.Background(), &rpcapi.NativeCallRequest{Method: "eth_call"}, out)
	require.NoError(t, err)

	item := <-out
	assert.Equal(t, `"result"`, string(item.JSON))
}

func TestHandlers_NativeCall_FallsThroughToNextUpstream(t *testing.T) {
	m := multistream.New(testChain(), nil, nil)
	require.NoError(t, m.Start())
	defer m.Close()

	failing := upstreamtest.New("failing", upstream.RolePrimary)
	failing.CallFunc = func(context.Context, string, []interface{}) ([]byte, error) {
		return nil, errors.New("boom")
	}
	working := upstreamtest.New("working", upstream.RolePrimary)
	working.CallFunc = func(context.Context, string, []interface{}) ([]byte, error) {
		return []byte(`"ok"`), nil
	}
	addUpstream(t, m, failing)
	addUpstream(t, m, working)

	h := rpcapi.NewHandlers(m)
	out := make(chan *rpcapi.NativeCallReplyItem, 1)
	err := h.NativeCall(context.Background(), &rpcapi.NativeCallRequest{Method: "eth_call"}, out)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string((<-out).JSON))
}

func TestHandlers_NativeCall_NoUpstreamsReturnsUnavailable(t *testing.T) {
	m := multistream.New(testChain(), nil, nil)
	require.NoError(t, m.Start())
	defer m.Close()

	h := rpcapi.NewHandlers(m)
	out := make(chan *rpcapi.NativeCallReplyItem, 1)
	err := h.NativeCall(context.Background(), &rpcapi.NativeCallRequest{Method: "eth_call"}, out)
	assert.ErrorIs(t, err, upstream.ErrUpstreamUnavailable)
}

func TestHandlers_SubscribeHead_StreamsPromotedBlocks(t *testing.T) {
	m := multistream.New(testChain(), nil, nil)
	require.NoError(t, m.Start())
	defer m.Close()

	u := upstreamtest.New("u1", upstream.RolePrimary)
	addUpstream(t, m, u)

	h := rpcapi.NewHandlers(m)
	out := make(chan *rpcapi.ChainHead, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.SubscribeHead(ctx, out)

	u.PromoteHead(models.BlockRef{Height: 7, TotalDifficulty: big.NewInt(7)})

	select {
	case head := <-out:
		assert.Equal(t, uint64(7), head.Height)
		assert.Equal(t, testChain(), head.Chain)
	case <-time.After(time.Second):
		t.Fatal("never received promoted head")
	}
}

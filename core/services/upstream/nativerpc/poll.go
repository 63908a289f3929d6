package nativerpc

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/jpillora/backoff"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

// rpcHead is the subset of an eth_getBlockByNumber reply this driver
// needs to build a models.BlockRef.
type rpcHead struct {
	Hash            common.Hash `json:"hash"`
	Number          hexUint64   `json:"number"`
	TotalDifficulty hexBig      `json:"totalDifficulty"`
}

// pollLoop dials the endpoint and polls it every pollInterval,
// reconnecting with a jpillora/backoff schedule on dial or call
// failure.
func (n *NativeRpc) pollLoop() {
	defer n.wg.Done()

	bo := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		if err := n.dial(); err != nil {
			n.connected.UnSet()
			n.setStatus(upstream.UNAVAILABLE)
			logger.Warnw("nativerpc: dial failed, backing off", "upstream", n.id, "err", err)
			if !n.sleep(bo.Duration()) {
				return
			}
			continue
		}
		n.connected.Set()
		bo.Reset()

		if !n.runUntilError() {
			return
		}
		n.connected.UnSet()
		n.setStatus(upstream.UNAVAILABLE)
		if !n.sleep(bo.Duration()) {
			return
		}
	}
}

func (n *NativeRpc) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ethrpc.DialContext(ctx, n.endpoint)
	if err != nil {
		return err
	}
	n.mu.Lock()
	if n.client != nil {
		n.client.Close()
	}
	n.client = client
	n.mu.Unlock()
	n.methodsMu.Lock()
	n.methods = map[string]struct{}{
		"eth_call": {}, "eth_getBalance": {}, "eth_getBlockByNumber": {},
		"eth_getTransactionReceipt": {}, "eth_sendRawTransaction": {},
	}
	n.methodsMu.Unlock()
	return nil
}

// runUntilError polls once per pollInterval until a call fails or
// Close is requested. It returns false iff the driver is shutting
// down (so the outer loop should not reconnect).
func (n *NativeRpc) runUntilError() bool {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	if err := n.pollOnce(); err != nil {
		logger.Warnw("nativerpc: poll failed", "upstream", n.id, "err", err)
		return true
	}
	n.emitAddedOnce()

	for {
		select {
		case <-ticker.C:
			if err := n.pollOnce(); err != nil {
				logger.Warnw("nativerpc: poll failed", "upstream", n.id, "err", err)
				return true
			}
		case <-n.chStop:
			return false
		}
	}
}

func (n *NativeRpc) pollOnce() error {
	n.mu.RLock()
	client := n.client
	n.mu.RUnlock()
	if client == nil {
		return upstream.ErrUpstreamUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.pollInterval)
	defer cancel()

	var raw json.RawMessage
	if err := client.CallContext(ctx, &raw, "eth_getBlockByNumber", "latest", false); err != nil {
		return err
	}

	var h rpcHead
	if err := json.Unmarshal(raw, &h); err != nil {
		return err
	}

	ref := models.BlockRef{
		Hash:            h.Hash,
		Height:          uint64(h.Number),
		TotalDifficulty: (*big.Int)(&h.TotalDifficulty),
	}
	n.head.Update(ref)
	n.setStatus(upstream.OK)
	return nil
}

// emitAddedOnce publishes EventAdded on the state stream the first
// time a poll succeeds, completing the OBSERVED -> ADDED transition.
func (n *NativeRpc) emitAddedOnce() {
	if n.addedEmitted.CompareAndSwap(false, true) {
		n.stateStream.Publish(upstream.ChangeEvent{Chain: n.chain, Upstream: n, Type: upstream.EventAdded})
	}
}

func (n *NativeRpc) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-n.chStop:
		return false
	}
}

// hexUint64 decodes a "0x..."-prefixed quantity.
type hexUint64 uint64

func (h *hexUint64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := parseHexUint64(s)
	if err != nil {
		return err
	}
	*h = hexUint64(v)
	return nil
}

// hexBig decodes a "0x..."-prefixed big integer, embedding big.Int by
// value so rpcHead stays a plain struct.
type hexBig big.Int

func (h *hexBig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) <= 2 {
		(*big.Int)(h).SetInt64(0)
		return nil
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return upstream.ErrHeadFault
	}
	*(*big.Int)(h) = *v
	return nil
}

func parseHexUint64(s string) (uint64, error) {
	if len(s) <= 2 {
		return 0, nil
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return 0, upstream.ErrHeadFault
	}
	return v.Uint64(), nil
}

// Package rpcapi specifies the gRPC-shaped external interface
// contracts. The wire codec itself is out of scope: these are plain
// Go types and an interface the transport layer implements against,
// not generated protobuf stubs.
package rpcapi

import "github.com/nodefleet/multistream/core/store/models"

// NativeCallRequest is a single JSON-RPC call routed through the
// selector pipeline to one upstream.
type NativeCallRequest struct {
	Chain  models.ChainRef
	Method string
	Params []interface{}
}

// NativeCallReplyItem is one item of a NativeCall response stream.
type NativeCallReplyItem struct {
	JSON []byte
	Err  error
}

// ChainHead is the wire shape for a chain tip: hex block id without a
// "0x" prefix, height, and totalDifficulty as big-endian bytes.
type ChainHead struct {
	Chain   models.ChainRef
	BlockID string
	Height  uint64
	Weight  []byte
}

func ChainHeadFromBlockRef(chain models.ChainRef, ref models.BlockRef) ChainHead {
	weight := []byte(nil)
	if ref.TotalDifficulty != nil {
		weight = ref.TotalDifficulty.Bytes()
	}
	return ChainHead{
		Chain:   chain,
		BlockID: ref.HexBlockID(),
		Height:  ref.Height,
		Weight:  weight,
	}
}

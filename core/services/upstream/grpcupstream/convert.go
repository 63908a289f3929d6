package grpcupstream

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nodefleet/multistream/core/services/rpcapi"
	"github.com/nodefleet/multistream/core/store/models"
)

// chainHeadToBlockRef inverts rpcapi.ChainHeadFromBlockRef: hex block
// id without "0x" back to a common.Hash, and big-endian weight bytes
// back to a *big.Int.
func chainHeadToBlockRef(h *rpcapi.ChainHead) models.BlockRef {
	return models.BlockRef{
		Hash:            common.HexToHash("0x" + h.BlockID),
		Height:          h.Height,
		TotalDifficulty: new(big.Int).SetBytes(h.Weight),
	}
}

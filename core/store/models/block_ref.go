package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BlockRef is an immutable reference to a single block: its hash,
// height and cumulative proof-of-work weight (totalDifficulty). Heads
// are compared and ordered strictly by Weight, never by Height alone.
type BlockRef struct {
	Hash            common.Hash
	Height          uint64
	TotalDifficulty *big.Int
}

// Heavier reports whether r is strictly heavier than other. A nil
// other is always lighter. Ties (equal weight) are not heavier: the
// first-seen block at a given weight wins.
func (r BlockRef) Heavier(other *BlockRef) bool {
	if other == nil {
		return true
	}
	if r.TotalDifficulty == nil {
		return false
	}
	if other.TotalDifficulty == nil {
		return true
	}
	return r.TotalDifficulty.Cmp(other.TotalDifficulty) > 0
}

// HexBlockID renders Hash the way the gRPC ingress expects it: hex,
// no "0x" prefix.
func (r BlockRef) HexBlockID() string {
	return r.Hash.Hex()[2:]
}

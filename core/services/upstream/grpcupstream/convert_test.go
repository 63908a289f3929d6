package grpcupstream

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodefleet/multistream/core/services/rpcapi"
	"github.com/nodefleet/multistream/core/store/models"
)

func TestChainHeadToBlockRef_RoundTripsWeightAndHeight(t *testing.T) {
	chain := models.ChainRef{ChainCode: "ETH", ID: 1}
	ref := models.BlockRef{Height: 100, TotalDifficulty: big.NewInt(123456)}
	wire := rpcapi.ChainHeadFromBlockRef(chain, ref)

	got := chainHeadToBlockRef(&wire)
	assert.Equal(t, ref.Height, got.Height)
	assert.Equal(t, ref.TotalDifficulty.Int64(), got.TotalDifficulty.Int64())
}

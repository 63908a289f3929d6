package nativerpc

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRpcHead_UnmarshalsHexFields(t *testing.T) {
	raw := []byte(`{"number":"0x64","totalDifficulty":"0x1e8480"}`)

	var h rpcHead
	require.NoError(t, json.Unmarshal(raw, &h))

	assert.Equal(t, uint64(100), uint64(h.Number))
	assert.Equal(t, int64(2000000), (*big.Int)(&h.TotalDifficulty).Int64())
}

func TestHexUint64_EmptyQuantity(t *testing.T) {
	var h hexUint64
	require.NoError(t, json.Unmarshal([]byte(`"0x"`), &h))
	assert.Equal(t, uint64(0), uint64(h))
}

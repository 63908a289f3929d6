package head_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodefleet/multistream/core/services/upstream/head"
	"github.com/nodefleet/multistream/core/store/models"
)

func ref(hash byte, height uint64, difficulty int64) models.BlockRef {
	return models.BlockRef{
		Hash:            common.BytesToHash([]byte{hash}),
		Height:          height,
		TotalDifficulty: big.NewInt(difficulty),
	}
}

func TestHead_Update_StrictlyHeavierPromotes(t *testing.T) {
	h := head.New()
	defer h.Close()

	assert.Nil(t, h.Current())

	promoted := h.Update(ref(1, 10, 100))
	require.True(t, promoted)
	require.NotNil(t, h.Current())
	assert.Equal(t, uint64(10), h.Current().Height)
}

func TestHead_Update_IgnoresLessDifficultSuccessor(t *testing.T) {
	// scenario 3: a strictly heavier tip is followed; a lighter or
	// equal-weight successor never replaces it (first-seen wins).
	h := head.New()
	defer h.Close()

	require.True(t, h.Update(ref(1, 10, 100)))
	assert.False(t, h.Update(ref(2, 11, 100))) // equal weight, different hash
	assert.False(t, h.Update(ref(3, 9, 50)))   // lighter
	assert.Equal(t, uint64(10), h.Current().Height)

	require.True(t, h.Update(ref(4, 12, 150)))
	assert.Equal(t, uint64(12), h.Current().Height)
}

func TestHead_CurrentHeight_BlocksUntilPromotedOrDeadline(t *testing.T) {
	h := head.New()
	defer h.Close()

	t.Run("times out with no promotion", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := h.CurrentHeight(ctx)
		assert.Error(t, err)
	})

	t.Run("unblocks on promotion", func(t *testing.T) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			height, err := h.CurrentHeight(ctx)
			assert.NoError(t, err)
			assert.Equal(t, uint64(20), height)
		}()

		time.Sleep(10 * time.Millisecond)
		h.Update(ref(5, 20, 500))
		<-done
	})
}

func TestHead_Flux_FansOutToSubscribers(t *testing.T) {
	h := head.New()
	defer h.Close()

	flux1 := h.Flux()
	flux2 := h.Flux()

	h.Update(ref(1, 1, 10))

	select {
	case got := <-flux1:
		assert.Equal(t, uint64(1), got.Height)
	case <-time.After(time.Second):
		t.Fatal("flux1 never received promoted block")
	}
	select {
	case got := <-flux2:
		assert.Equal(t, uint64(1), got.Height)
	case <-time.After(time.Second):
		t.Fatal("flux2 never received promoted block")
	}
}

package multistream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodefleet/multistream/core/services/upstream"
)

func TestBestAvailability_UpdateAndForget(t *testing.T) {
	b := newBestAvailability()

	agg, changed := b.Update("a", upstream.OK)
	assert.True(t, changed)
	assert.Equal(t, upstream.OK, agg)

	agg, changed = b.Update("b", upstream.LAGGING)
	assert.True(t, changed)
	assert.Equal(t, upstream.LAGGING, agg)

	agg, changed = b.Update("a", upstream.SYNCING)
	assert.True(t, changed)
	assert.Equal(t, upstream.SYNCING, agg)

	agg, changed = b.Forget("a")
	assert.True(t, changed)
	assert.Equal(t, upstream.LAGGING, agg)

	agg, changed = b.Forget("b")
	assert.True(t, changed)
	assert.Equal(t, upstream.UNAVAILABLE, agg)
}

func TestBestAvailability_ForgetUnboundsTheMap(t *testing.T) {
	// The map must not grow unboundedly across churn: forgetting every
	// id returns it to empty.
	b := newBestAvailability()
	for i := 0; i < 100; i++ {
		id := string(rune('a' + i%26))
		b.Update(id, upstream.OK)
		b.Forget(id)
	}
	assert.Len(t, b.byID, 0)
}

package upstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodefleet/multistream/core/services/upstream"
)

func TestMinAvailability(t *testing.T) {
	t.Run("empty set is UNAVAILABLE", func(t *testing.T) {
		assert.Equal(t, upstream.UNAVAILABLE, upstream.MinAvailability())
	})

	t.Run("all OK reduces to OK", func(t *testing.T) {
		assert.Equal(t, upstream.OK, upstream.MinAvailability(upstream.OK, upstream.OK))
	})

	t.Run("OK and LAGGING reduces to LAGGING", func(t *testing.T) {
		// scenario 4: aggregate status reduction picks the worst value.
		assert.Equal(t, upstream.LAGGING, upstream.MinAvailability(upstream.OK, upstream.LAGGING))
	})

	t.Run("any UNAVAILABLE dominates", func(t *testing.T) {
		assert.Equal(t, upstream.UNAVAILABLE,
			upstream.MinAvailability(upstream.OK, upstream.SYNCING, upstream.UNAVAILABLE))
	})
}

func TestCapabilitySetUnion(t *testing.T) {
	a := upstream.NewCapabilitySet(upstream.CapabilityRPC)
	b := upstream.NewCapabilitySet(upstream.CapabilityWSHead)

	union := a.Union(b)
	assert.True(t, union.Has(upstream.CapabilityRPC))
	assert.True(t, union.Has(upstream.CapabilityWSHead))
	assert.False(t, union.Has(upstream.CapabilityTrace))
}

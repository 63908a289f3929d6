package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodefleet/multistream/core/services/selector"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/services/upstream/upstreamtest"
	"github.com/nodefleet/multistream/core/store/models"
)

func chainRef() models.ChainRef { return models.ChainRef{ChainCode: "ETH", ID: 1} }

func TestFilteredApis_RotatesAcrossCallers(t *testing.T) {
	// scenario 5: three equally-healthy primaries, seeds 0..3 rotate
	// the starting point by one each time.
	u1 := upstreamtest.New("u1", upstream.RolePrimary)
	u2 := upstreamtest.New("u2", upstream.RolePrimary)
	u3 := upstreamtest.New("u3", upstream.RolePrimary)
	ups := []upstream.Upstream{u1, u2, u3}

	wantFirst := []string{"u1", "u2", "u3", "u1"}
	for seed, want := range wantFirst {
		fa := selector.NewFilteredApis(chainRef(), ups, selector.NewFilter(selector.Any()), uint32(seed))
		first, ok := fa.Next()
		require.True(t, ok)
		assert.Equal(t, want, first.Upstream.ID())
	}
}

func TestFilteredApis_PrimaryBeforeFallback(t *testing.T) {
	primary := upstreamtest.New("primary", upstream.RolePrimary)
	fallback := upstreamtest.New("fallback", upstream.RoleFallback)

	fa := selector.NewFilteredApis(chainRef(), []upstream.Upstream{fallback, primary},
		selector.NewFilter(selector.Any()), 0)

	require.Equal(t, 2, fa.Len())
	first, _ := fa.Next()
	second, _ := fa.Next()
	assert.Equal(t, "primary", first.Upstream.ID())
	assert.Equal(t, "fallback", second.Upstream.ID())
}

func TestFilteredApis_UnavailableUpstreamsSortLast(t *testing.T) {
	up := upstreamtest.New("up", upstream.RolePrimary)
	down := upstreamtest.New("down", upstream.RolePrimary)
	down.SetAvailable(false)

	fa := selector.NewFilteredApis(chainRef(), []upstream.Upstream{down, up}, selector.NewFilter(selector.Any()), 0)
	first, _ := fa.Next()
	second, _ := fa.Next()
	assert.Equal(t, "up", first.Upstream.ID())
	assert.Equal(t, "down", second.Upstream.ID())
}

func TestFilteredApis_LowerLagSortsFirstWithinAvailability(t *testing.T) {
	laggy := upstreamtest.New("laggy", upstream.RolePrimary)
	laggy.SetLag(50)
	fresh := upstreamtest.New("fresh", upstream.RolePrimary)
	fresh.SetLag(0)

	fa := selector.NewFilteredApis(chainRef(), []upstream.Upstream{laggy, fresh}, selector.NewFilter(selector.Any()), 0)
	first, _ := fa.Next()
	assert.Equal(t, "fresh", first.Upstream.ID())
}

func TestFilteredApis_LowerPriorityTieBreaksEqualLag(t *testing.T) {
	low := upstreamtest.New("low-priority", upstream.RolePrimary)
	low.OptionsValue.Priority = 5
	high := upstreamtest.New("high-priority", upstream.RolePrimary)
	high.OptionsValue.Priority = 1

	fa := selector.NewFilteredApis(chainRef(), []upstream.Upstream{low, high}, selector.NewFilter(selector.Any()), 0)
	first, _ := fa.Next()
	assert.Equal(t, "high-priority", first.Upstream.ID(), "lower Priority value sorts first under equal lag")
}

func TestFilteredApis_ExhaustedSequence(t *testing.T) {
	fa := selector.NewFilteredApis(chainRef(), nil, selector.NewFilter(selector.Any()), 0)
	assert.Equal(t, 0, fa.Len())
	_, ok := fa.Next()
	assert.False(t, ok)
}

func TestFilteredApis_MatcherExcludesNonMatchingUpstreams(t *testing.T) {
	a := upstreamtest.New("a", upstream.RolePrimary)
	a.OptionsValue.Labels = map[string]string{"region": "us"}
	b := upstreamtest.New("b", upstream.RolePrimary)
	b.OptionsValue.Labels = map[string]string{"region": "eu"}

	fa := selector.NewFilteredApis(chainRef(), []upstream.Upstream{a, b},
		selector.NewFilter(selector.LabelSelectorMatcher(map[string]string{"region": "us"})), 0)

	require.Equal(t, 1, fa.Len())
	first, _ := fa.Next()
	assert.Equal(t, "a", first.Upstream.ID())
}

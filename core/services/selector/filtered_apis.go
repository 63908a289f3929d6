package selector

import (
	"sort"

	"github.com/nodefleet/multistream/core/store/models"

	"github.com/nodefleet/multistream/core/services/upstream"
)

// FilteredApis is a stateless view: given a chain, an upstream
// snapshot, a filter and a rotation seed, it produces a finite,
// single-pass, ordered sequence of EthereumApi handles.
type FilteredApis struct {
	Chain     models.ChainRef
	Upstreams []upstream.Upstream
	Filter    Filter
	Seed      uint32

	ordered []EthereumApi
	pos     int
}

// NewFilteredApis precomputes the ordered sequence once, up front;
// Next then walks it lazily.
func NewFilteredApis(chain models.ChainRef, upstreams []upstream.Upstream, filter Filter, seed uint32) *FilteredApis {
	f := &FilteredApis{Chain: chain, Upstreams: upstreams, Filter: filter, Seed: seed}
	f.ordered = buildOrder(upstreams, filter, seed)
	return f
}

// Next returns the next EthereumApi in order, or ok=false once the
// sequence is exhausted. Exhaustion with zero elements ever returned
// is the "no candidate upstream" failure mode, distinct from a
// per-call failure partway through.
func (f *FilteredApis) Next() (api EthereumApi, ok bool) {
	if f.pos >= len(f.ordered) {
		return EthereumApi{}, false
	}
	api = f.ordered[f.pos]
	f.pos++
	return api, true
}

// Len reports the total size of the ordered sequence (for tests and
// for "empty sequence" detection without consuming it).
func (f *FilteredApis) Len() int {
	return len(f.ordered)
}

func buildOrder(upstreams []upstream.Upstream, filter Filter, seed uint32) []EthereumApi {
	matcher := filter.Matcher
	if matcher == nil {
		matcher = Any()
	}

	var primary, fallback []upstream.Upstream
	for _, u := range upstreams {
		if !matcher.Matches(u) {
			continue
		}
		if u.Role() == upstream.RolePrimary {
			primary = append(primary, u)
		} else {
			fallback = append(fallback, u)
		}
	}

	ordered := make([]EthereumApi, 0, len(primary)+len(fallback))
	for _, part := range [][]upstream.Upstream{primary, fallback} {
		for _, u := range rotateAndSort(part, seed) {
			ordered = append(ordered, EthereumApi{Upstream: u})
		}
	}
	return ordered
}

// rotateAndSort rotates part by seed mod len(part), then stably
// reorders so unavailable upstreams trail available ones; within each
// availability bucket, lower lag precedes higher lag; and within equal
// lag, lower Options.Priority precedes higher (Priority is a tie-break
// only, never the primary ordering key).
func rotateAndSort(part []upstream.Upstream, seed uint32) []upstream.Upstream {
	n := len(part)
	if n == 0 {
		return nil
	}

	idx := int(seed % uint32(n))
	rotated := make([]upstream.Upstream, n)
	for i := 0; i < n; i++ {
		rotated[i] = part[(idx+i)%n]
	}

	sort.SliceStable(rotated, func(i, j int) bool {
		ai, aj := rotated[i].IsAvailable(), rotated[j].IsAvailable()
		if ai != aj {
			return ai // available (true) sorts before unavailable (false)
		}
		if rotated[i].Lag() != rotated[j].Lag() {
			return rotated[i].Lag() < rotated[j].Lag()
		}
		return rotated[i].Options().Priority < rotated[j].Options().Priority
	})
	return rotated
}

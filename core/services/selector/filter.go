package selector

import "github.com/nodefleet/multistream/core/services/upstream"

// SortStrategy orders upstreams within a role partition once rotation
// has been applied. The default (and only strategy specified) places
// unavailable upstreams after available ones and sorts by ascending
// lag, then ascending priority, within each availability bucket.
type SortStrategy int

const (
	SortByAvailabilityThenLag SortStrategy = iota
)

// Filter carries a matcher plus a sort strategy.
type Filter struct {
	Matcher  upstream.Matcher
	SortBy   SortStrategy
}

// NewFilter builds a Filter with the default sort strategy.
func NewFilter(m upstream.Matcher) Filter {
	if m == nil {
		m = Any()
	}
	return Filter{Matcher: m, SortBy: SortByAvailabilityThenLag}
}

// Package selector implements the Matcher/FilteredApis pipeline: an
// ordered picker of eligible upstream APIs for a given request.
package selector

import "github.com/nodefleet/multistream/core/services/upstream"

// LabelSelectorMatcher accepts upstreams whose Options().Labels is a
// superset of the given labels (every key/value pair must match).
func LabelSelectorMatcher(labels map[string]string) upstream.Matcher {
	return matcherFunc(func(u upstream.Upstream) bool {
		opts := u.Options().Labels
		for k, v := range labels {
			if opts[k] != v {
				return false
			}
		}
		return true
	})
}

// CapabilityMatcher accepts upstreams that advertise every one of the
// given capabilities.
func CapabilityMatcher(caps ...upstream.Capability) upstream.Matcher {
	return matcherFunc(func(u upstream.Upstream) bool {
		set := u.Capabilities()
		for _, c := range caps {
			if !set.Has(c) {
				return false
			}
		}
		return true
	})
}

// Any accepts every upstream; the zero-value filter.
func Any() upstream.Matcher {
	return matcherFunc(func(upstream.Upstream) bool { return true })
}

// And composites multiple matchers, accepting only when all do.
func And(matchers ...upstream.Matcher) upstream.Matcher {
	return matcherFunc(func(u upstream.Upstream) bool {
		for _, m := range matchers {
			if !m.Matches(u) {
				return false
			}
		}
		return true
	})
}

// Or composites multiple matchers, accepting when any does.
func Or(matchers ...upstream.Matcher) upstream.Matcher {
	return matcherFunc(func(u upstream.Upstream) bool {
		for _, m := range matchers {
			if m.Matches(u) {
				return true
			}
		}
		return false
	})
}

type matcherFunc func(u upstream.Upstream) bool

func (f matcherFunc) Matches(u upstream.Upstream) bool { return f(u) }

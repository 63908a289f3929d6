package multistream

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

// QuorumForLabels groups upstreams sharing a label set.
type QuorumForLabels struct {
	Labels map[string]string
	Count  int
}

// State is the snapshot the reducer folds the current upstream set
// into. It is only ever mutated by Multistream's single serialized
// consumer goroutine; readers see an immutable copy.
type State struct {
	Status          upstream.Availability
	CallMethods     map[string]struct{}
	Capabilities    upstream.CapabilitySet
	QuorumLabels    []QuorumForLabels
	LowerBounds     map[models.LowerBoundType]models.LowerBoundData
	Finalizations   map[models.FinalizationType]models.FinalizationData
	SupportedTopics map[string]struct{}
}

// StateEvent is the diff the reducer emits whenever a reduction
// changes any derived value.
type StateEvent struct {
	Chain    models.ChainRef
	Previous State
	Current  State
}

// topicCapability maps a requested egress topic to the capability at
// least one member upstream must advertise for that topic to be
// deliverable.
var topicCapability = map[string]upstream.Capability{
	TopicNewHeads: upstream.CapabilityWSHead,
}

func emptyState() State {
	return State{
		Status:          upstream.UNAVAILABLE,
		CallMethods:     map[string]struct{}{},
		Capabilities:    upstream.CapabilitySet{},
		LowerBounds:     map[models.LowerBoundType]models.LowerBoundData{},
		Finalizations:   map[models.FinalizationType]models.FinalizationData{},
		SupportedTopics: map[string]struct{}{},
	}
}

// reducer is the pure, write-serialized state derivation. Only
// Multistream's consumer goroutine calls updateState; everything else
// reads a snapshot via snapshot().
type reducer struct {
	mu      sync.RWMutex
	current State
	ready   bool
}

func newReducer() *reducer {
	return &reducer{current: emptyState()}
}

func (r *reducer) snapshot() (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.ready
}

// updateState reduces upstreams into a new State and returns the diff
// against the previous one, or ok=false if nothing changed.
func (r *reducer) updateState(chain models.ChainRef, upstreams []upstream.Upstream, egress EgressSubscription) (StateEvent, bool) {
	next := reduce(upstreams, egress)

	r.mu.Lock()
	prev := r.current
	r.current = next
	r.ready = true
	r.mu.Unlock()

	if statesEqual(prev, next) {
		return StateEvent{}, false
	}
	return StateEvent{Chain: chain, Previous: prev, Current: next}, true
}

func reduce(upstreams []upstream.Upstream, egress EgressSubscription) State {
	if len(upstreams) == 0 {
		return emptyState()
	}

	statuses := make([]upstream.Availability, 0, len(upstreams))
	caps := upstream.CapabilitySet{}
	lowerBounds := map[models.LowerBoundType]models.LowerBoundData{}
	finalizations := map[models.FinalizationType]models.FinalizationData{}
	quorum := map[string]*QuorumForLabels{}

	var primaries, fallbacks []upstream.Upstream

	for _, u := range upstreams {
		statuses = append(statuses, u.Status())
		caps = caps.Union(u.Capabilities())

		for t, bound := range u.LowerBounds() {
			if cur, ok := lowerBounds[t]; !ok || bound.Height < cur.Height {
				lowerBounds[t] = bound
			}
		}
		for t, fin := range u.Finalizations() {
			if cur, ok := finalizations[t]; !ok || fin.Height < cur.Height {
				finalizations[t] = fin
			}
		}

		key := labelKey(u.Options().Labels)
		if q, ok := quorum[key]; ok {
			q.Count++
		} else {
			quorum[key] = &QuorumForLabels{Labels: u.Options().Labels, Count: 1}
		}

		if u.Role() == upstream.RolePrimary {
			primaries = append(primaries, u)
		} else {
			fallbacks = append(fallbacks, u)
		}
	}

	quorumList := make([]QuorumForLabels, 0, len(quorum))
	for _, q := range quorum {
		quorumList = append(quorumList, *q)
	}
	sort.Slice(quorumList, func(i, j int) bool {
		return labelKey(quorumList[i].Labels) < labelKey(quorumList[j].Labels)
	})

	return State{
		Status:          upstream.MinAvailability(statuses...),
		CallMethods:     resolveMethods(primaries, fallbacks),
		Capabilities:    caps,
		QuorumLabels:    quorumList,
		LowerBounds:     lowerBounds,
		Finalizations:   finalizations,
		SupportedTopics: supportedTopics(egress, caps),
	}
}

// supportedTopics intersects the requested egress topics against the
// aggregate capability set: a topic is deliverable only if at least
// one member upstream advertises the capability it requires. A
// requested topic with no known capability mapping is assumed
// deliverable (there is nothing to gate it on).
func supportedTopics(egress EgressSubscription, caps upstream.CapabilitySet) map[string]struct{} {
	out := map[string]struct{}{}
	for topic := range egress.Topics {
		if !egress.Supports(topic) {
			continue
		}
		required, known := topicCapability[topic]
		if !known || caps.Has(required) {
			out[topic] = struct{}{}
		}
	}
	return out
}

// resolveMethods applies a role-weighted union: a method is allowed if
// any primary declares it, or — only when every primary is down — if
// any fallback declares it.
func resolveMethods(primaries, fallbacks []upstream.Upstream) map[string]struct{} {
	methods := map[string]struct{}{}
	for _, u := range primaries {
		for m := range u.Methods() {
			methods[m] = struct{}{}
		}
	}

	allPrimariesDown := true
	for _, u := range primaries {
		if u.IsAvailable() {
			allPrimariesDown = false
			break
		}
	}
	if allPrimariesDown {
		for _, u := range fallbacks {
			for m := range u.Methods() {
				methods[m] = struct{}{}
			}
		}
	}
	return methods
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

func statesEqual(a, b State) bool {
	return a.Status == b.Status &&
		reflect.DeepEqual(a.CallMethods, b.CallMethods) &&
		reflect.DeepEqual(a.Capabilities, b.Capabilities) &&
		reflect.DeepEqual(a.QuorumLabels, b.QuorumLabels) &&
		reflect.DeepEqual(a.LowerBounds, b.LowerBounds) &&
		reflect.DeepEqual(a.Finalizations, b.Finalizations) &&
		reflect.DeepEqual(a.SupportedTopics, b.SupportedTopics)
}

package multistream

import (
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

// Methods returns the currently-allowed call method set, empty until
// the first state derivation. Methods is also part of the Upstream
// interface Multistream itself satisfies, and that interface's
// signature carries no error, so "not yet derived" and "nothing
// allowed" are both represented as an empty map.
func (m *Multistream) Methods() map[string]struct{} {
	s, _ := m.reducer.snapshot()
	if s.CallMethods == nil {
		return map[string]struct{}{}
	}
	return s.CallMethods
}

func (m *Multistream) Capabilities() upstream.CapabilitySet {
	s, _ := m.reducer.snapshot()
	if s.Capabilities == nil {
		return upstream.CapabilitySet{}
	}
	return s.Capabilities
}

func (m *Multistream) LowerBounds() map[models.LowerBoundType]models.LowerBoundData {
	s, _ := m.reducer.snapshot()
	if s.LowerBounds == nil {
		return map[models.LowerBoundType]models.LowerBoundData{}
	}
	return s.LowerBounds
}

func (m *Multistream) Finalizations() map[models.FinalizationType]models.FinalizationData {
	s, _ := m.reducer.snapshot()
	if s.Finalizations == nil {
		return map[models.FinalizationType]models.FinalizationData{}
	}
	return s.Finalizations
}

// QuorumLabels returns the current label groupings, empty until the
// first state derivation.
func (m *Multistream) QuorumLabels() []QuorumForLabels {
	s, ready := m.reducer.snapshot()
	if !ready {
		return nil
	}
	return s.QuorumLabels
}

// SupportedTopics returns the egress subscription topics currently
// deliverable given member capabilities, empty until the first state
// derivation.
func (m *Multistream) SupportedTopics() map[string]struct{} {
	s, _ := m.reducer.snapshot()
	if s.SupportedTopics == nil {
		return map[string]struct{}{}
	}
	return s.SupportedTopics
}

// Status returns the current aggregate status, UNAVAILABLE if no
// upstream has ever been added.
func (m *Multistream) Status() upstream.Availability {
	s, _ := m.reducer.snapshot()
	return s.Status
}

// TriggerMethodsRederivation re-runs the state reducer against the
// current membership snapshot without any new event to apply.
func (m *Multistream) TriggerMethodsRederivation() {
	m.rederiveState()
}

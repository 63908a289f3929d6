package upstream

import "github.com/nodefleet/multistream/core/store/models"

// EventType enumerates the six kinds of UpstreamChangeEvent an
// upstream's membership/state lifecycle can emit.
type EventType int

const (
	EventAdded EventType = iota
	EventRemoved
	EventRevalidated
	EventUpdated
	EventObserved
	EventFatalSettingsErrorRemoved
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "ADDED"
	case EventRemoved:
		return "REMOVED"
	case EventRevalidated:
		return "REVALIDATED"
	case EventUpdated:
		return "UPDATED"
	case EventObserved:
		return "OBSERVED"
	case EventFatalSettingsErrorRemoved:
		return "FATAL_SETTINGS_ERROR_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// ChangeEvent is the transient message that drives Multistream
// membership and state re-derivation.
type ChangeEvent struct {
	Chain    models.ChainRef
	Upstream Upstream
	Type     EventType
}

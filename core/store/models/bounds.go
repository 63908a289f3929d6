package models

// LowerBoundType names a kind of historical data an upstream may have
// pruned below a certain height.
type LowerBoundType string

const (
	LowerBoundState LowerBoundType = "state"
	LowerBoundTrace LowerBoundType = "trace"
	LowerBoundBlock LowerBoundType = "block"
)

// LowerBoundData is the oldest height, per type, an upstream can still
// serve.
type LowerBoundData struct {
	Type   LowerBoundType
	Height uint64
}

// FinalizationType names a consensus-layer finality kind.
type FinalizationType string

const (
	FinalizationSafe      FinalizationType = "safe"
	FinalizationFinalized FinalizationType = "finalized"
)

// FinalizationData is the latest height, per type, the consensus layer
// has certified.
type FinalizationData struct {
	Type   FinalizationType
	Height uint64
}

// Package service defines the minimal lifecycle contract every
// long-running component in the core implements.
package service

// Service is the lifecycle contract shared by every Upstream
// implementation, Multistream included.
type Service interface {
	// Start begins background work. Must be idempotent.
	Start() error
	// Close stops background work and disposes held resources.
	// Must be idempotent.
	Close() error
	// Healthy reports a non-nil error if the service is running but
	// in a degraded state.
	Healthy() error
	// Ready reports a non-nil error if the service has not yet
	// completed its initial readiness criteria (e.g. first state
	// derivation).
	Ready() error
	// IsRunning reports whether Start has completed and Close has not.
	IsRunning() bool
}

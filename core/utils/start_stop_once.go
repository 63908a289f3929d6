package utils

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

type startStopOnceState int32

const (
	stateUnstarted startStopOnceState = iota
	stateStarted
	stateStartFailed
	stateStopped
	stateStopFailed
)

// StartStopOnce is embedded by every Service implementation to make
// Start/Close idempotent and safe to call from multiple goroutines.
type StartStopOnce struct {
	state atomic.Int32
}

// StartOnce runs fn exactly once; subsequent calls are no-ops that
// return nil. name is used only for error messages.
func (s *StartStopOnce) StartOnce(name string, fn func() error) error {
	if !s.state.CompareAndSwap(int32(stateUnstarted), int32(stateStarted)) {
		return nil
	}
	if err := fn(); err != nil {
		s.state.Store(int32(stateStartFailed))
		return errors.Wrapf(err, "%s failed to start", name)
	}
	return nil
}

// StopOnce runs fn exactly once; subsequent calls are no-ops that
// return nil.
func (s *StartStopOnce) StopOnce(name string, fn func() error) error {
	if !s.state.CompareAndSwap(int32(stateStarted), int32(stateStopped)) {
		return nil
	}
	if err := fn(); err != nil {
		s.state.Store(int32(stateStopFailed))
		return errors.Wrapf(err, "%s failed to stop", name)
	}
	return nil
}

// Started reports whether StartOnce has completed successfully.
func (s *StartStopOnce) Started() bool {
	return startStopOnceState(s.state.Load()) == stateStarted
}

// Stopped reports whether StopOnce has completed successfully.
func (s *StartStopOnce) Stopped() bool {
	st := startStopOnceState(s.state.Load())
	return st == stateStopped || st == stateStopFailed
}

// IsRunning reports whether Start has completed and Close has not.
func (s *StartStopOnce) IsRunning() bool {
	return s.Started() && !s.Stopped()
}

func (s startStopOnceState) String() string {
	switch s {
	case stateUnstarted:
		return "Unstarted"
	case stateStarted:
		return "Started"
	case stateStartFailed:
		return "StartFailed"
	case stateStopped:
		return "Stopped"
	case stateStopFailed:
		return "StopFailed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

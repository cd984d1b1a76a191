package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleInProgress is returned by TriggerNow when another cycle is
	// still running. The trigger is skipped, not queued.
	ErrCycleInProgress = errors.New("engine: cycle already in progress")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("engine: scheduler already running")

	// ErrUnknownSubscriber is returned by View for an id that is not
	// registered.
	ErrUnknownSubscriber = errors.New("engine: unknown subscriber")

	// ErrNoSnapshot is returned by View before any snapshot was pushed.
	ErrNoSnapshot = errors.New("engine: no snapshot available")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine: closed")
)

// CycleErrorCode categorizes cycle failures.
type CycleErrorCode string

const (
	// ErrCodeCycleFailure indicates a cycle returned an error.
	ErrCodeCycleFailure CycleErrorCode = "CYCLE_FAILURE"

	// ErrCodeCyclePanic indicates a cycle panicked and was recovered.
	ErrCodeCyclePanic CycleErrorCode = "CYCLE_PANIC"
)

// CycleError describes a cycle that did not complete. It is recovered at
// the scheduler boundary; the next tick runs normally.
type CycleError struct {
	Code    CycleErrorCode
	Cycle   int64
	Trigger string
	// Versions pinned by the cycle (0 when not yet pinned).
	Baseline int64
	Current  int64
	// Panic holds the recovered value for ErrCodeCyclePanic.
	Panic any
	Err   error
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.Code == ErrCodeCyclePanic {
		return fmt.Sprintf("%s: cycle %d (%s): panic: %v", e.Code, e.Cycle, e.Trigger, e.Panic)
	}
	return fmt.Sprintf("%s: cycle %d (%s): %v", e.Code, e.Cycle, e.Trigger, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// IsCycleFailure reports whether err is a CycleError of any code.
// Uses errors.As to handle wrapped errors.
func IsCycleFailure(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// IsCyclePanic reports whether err is a recovered cycle panic.
func IsCyclePanic(err error) bool {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeCyclePanic
	}
	return false
}

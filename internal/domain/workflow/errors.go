package workflow

import "errors"

// State machine errors
var (
	// ErrInvalidTransition is returned when a trigger is not permitted in the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guard on a permitted trigger rejects it
	ErrGuardFailed = errors.New("guard condition failed")
)

// Configuration errors. Fatal at startup or case creation, never retried.
var (
	ErrDuplicateHandler       = errors.New("duplicate step handler registration")
	ErrFirstStepNotConfigured = errors.New("first step has not been configured for case type")
)

// Business rule violations
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrTerminalStep        = errors.New("case is already at its final step")
	ErrCaseClosed          = errors.New("case is already closed")
	ErrCycleDetected       = errors.New("circular reference detected in step chain")
	ErrInvalidReassignment = errors.New("invalid reassignment")
	ErrInvalidPayload      = errors.New("invalid step payload")
)

// Not-found conditions
var (
	ErrCaseNotFound     = errors.New("case not found")
	ErrCaseTypeNotFound = errors.New("case type not found")
	ErrStepNotFound     = errors.New("step config not found")
	ErrHandlerNotFound  = errors.New("step handler not found")
)

// ErrDuplicateCaseNumber is returned by storage when a case number was
// already allocated by a concurrent request
var ErrDuplicateCaseNumber = errors.New("case number already allocated")

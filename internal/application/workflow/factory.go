package workflow

import (
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// BuildCaseStateMachine creates a state machine configured for the case lifecycle
func BuildCaseStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// OPEN: the first advance starts work on the case
	builder.Configure(domainwf.StateOpen).
		Permit(domainwf.TriggerAdvance, domainwf.StateInProgress).
		PermitReentry(domainwf.TriggerJump).
		PermitReentry(domainwf.TriggerReassign).
		PermitReentry(domainwf.TriggerEscalate).
		Permit(domainwf.TriggerClose, domainwf.StateClosed)

	// IN PROGRESS: step moves keep the status
	builder.Configure(domainwf.StateInProgress).
		PermitReentry(domainwf.TriggerAdvance).
		PermitReentry(domainwf.TriggerJump).
		PermitReentry(domainwf.TriggerReassign).
		PermitReentry(domainwf.TriggerEscalate).
		Permit(domainwf.TriggerClose, domainwf.StateClosed)

	// CLOSED is terminal - no outgoing transitions

	return builder.Build(initialState)
}

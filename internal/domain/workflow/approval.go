package workflow

import "context"

// BuildApprovalStateMachine creates a state machine configured for the
// multi-level approval lifecycle. isLastLevel decides whether an approval
// completes the workflow or keeps it pending at the next level.
//
// Approved, rejected and cancelled are terminal. Escalated is recoverable:
// it permits an explicit resume back to pending, or a withdrawal.
func BuildApprovalStateMachine(initialState State, isLastLevel func() bool) StateMachine {
	builder := NewBuilder()

	lastLevel := func(ctx context.Context) bool { return isLastLevel() }
	notLastLevel := func(ctx context.Context) bool { return !isLastLevel() }

	builder.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, lastLevel).
		PermitIf(TriggerApprove, StatePending, notLastLevel).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerDelegate, StatePending).
		Permit(TriggerWithdraw, StateCancelled).
		Permit(TriggerEscalate, StateEscalated)

	builder.Configure(StateEscalated).
		Permit(TriggerResume, StatePending).
		Permit(TriggerWithdraw, StateCancelled)

	// APPROVED, REJECTED and CANCELLED are terminal - no outgoing transitions

	return builder.Build(initialState)
}

package workflow

// outcomes lists every state a lookup can finish in
var outcomes = []State{
	StateAlreadyHandled,
	StatePendingValidation,
	StateOtherStatus,
	StateNotFound,
	StateError,
}

// NewVerificationBuilder returns a builder configured with the batch verification lifecycle:
//
//	UNCHECKED -> CHECKING -> {ALREADY_HANDLED, PENDING_VALIDATION, OTHER_STATUS, NOT_FOUND, ERROR}
//
// Every state may be RESET to UNCHECKED. ERROR and NOT_FOUND may be looked up again.
func NewVerificationBuilder() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateUnchecked).
		Permit(TriggerLookup, StateChecking).
		Permit(TriggerReset, StateUnchecked)

	b.Configure(StateChecking).
		Permit(TriggerFoundHandled, StateAlreadyHandled).
		Permit(TriggerFoundPending, StatePendingValidation).
		Permit(TriggerFoundOther, StateOtherStatus).
		Permit(TriggerAbsent, StateNotFound).
		Permit(TriggerFail, StateError).
		Permit(TriggerLookup, StateChecking).
		Permit(TriggerReset, StateUnchecked)

	b.ConfigureEach(outcomes, func(c StateConfiguration) {
		c.Permit(TriggerReset, StateUnchecked)
	})

	b.Configure(StateError).Permit(TriggerLookup, StateChecking)
	b.Configure(StateNotFound).Permit(TriggerLookup, StateChecking)

	return b
}

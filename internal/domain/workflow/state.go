package workflow

// State represents a batch verification state
type State string

const (
	StateUnchecked         State = "UNCHECKED"
	StateChecking          State = "CHECKING"
	StateAlreadyHandled    State = "ALREADY_HANDLED"
	StatePendingValidation State = "PENDING_VALIDATION"
	StateOtherStatus       State = "OTHER_STATUS"
	StateNotFound          State = "NOT_FOUND"
	StateError             State = "ERROR"
)

var validStates = map[State]bool{
	StateUnchecked:         true,
	StateChecking:          true,
	StateAlreadyHandled:    true,
	StatePendingValidation: true,
	StateOtherStatus:       true,
	StateNotFound:          true,
	StateError:             true,
}

// outcomeStates are the states a finished lookup can land in
var outcomeStates = map[State]bool{
	StateAlreadyHandled:    true,
	StatePendingValidation: true,
	StateOtherStatus:       true,
	StateNotFound:          true,
	StateError:             true,
}

// IsOutcome returns true if the state is the result of a completed lookup
func (s State) IsOutcome() bool {
	return outcomeStates[s]
}

// IsReadOnly returns true if the transaction found cannot be linked or edited
func (s State) IsReadOnly() bool {
	return s == StateAlreadyHandled || s == StateOtherStatus
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid verification state
func (s State) IsValid() bool {
	return validStates[s]
}

package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerLookup       Trigger = "LOOKUP"
	TriggerFoundHandled Trigger = "FOUND_HANDLED"
	TriggerFoundPending Trigger = "FOUND_PENDING"
	TriggerFoundOther   Trigger = "FOUND_OTHER"
	TriggerAbsent       Trigger = "ABSENT"
	TriggerFail         Trigger = "FAIL"
	TriggerReset        Trigger = "RESET"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

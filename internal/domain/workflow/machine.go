package workflow

import "context"

// TransitionFunc observes a completed transition
type TransitionFunc func(from, to State, trigger Trigger)

// StateMachine tracks the current verification state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger and returns the state it moved to
	Fire(ctx context.Context, trigger Trigger) (State, error)

	// PermittedTriggers returns the triggers allowed in the current state, sorted by name
	PermittedTriggers() []Trigger
}

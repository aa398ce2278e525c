package workflow

import "context"

// StateMachine tracks a current status and validates transitions
type StateMachine interface {
	// State returns the current status
	State() Status

	// CanFire returns true if the trigger is permitted in the current status
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new status if allowed
	Fire(ctx context.Context, trigger Trigger) error
}

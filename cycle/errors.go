/*
errors.go - Governance error types

PURPOSE:
  Authorization and transition-guard failures for the plan state
  machine and closure ledger. All of these reject the request before
  any state change is written.
*/
package cycle

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the actor lacks the role or identity
	// the transition requires.
	ErrForbidden = errors.New("actor not permitted for this action")

	// ErrReasonRequired is returned when a reject omits its reason.
	ErrReasonRequired = errors.New("a non-empty reason is required")

	// ErrPlanLocked is returned when an edit or transition hits a locked
	// plan, or a lock hits an already-locked plan.
	ErrPlanLocked = errors.New("plan is locked")

	// ErrPlanNotLocked is returned when reopening a plan that isn't locked.
	ErrPlanNotLocked = errors.New("plan is not locked")
)

// InvalidTransitionError reports a transition attempted from a status
// outside its allowed set.
type InvalidTransitionError struct {
	PlanID PlanID
	From   PlanStatus
	Action ApprovalAction
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s plan %s from status %s", e.Action, e.PlanID, e.From)
}

// IsAuthorization returns true for errors rejected on actor identity or role.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrForbidden)
}

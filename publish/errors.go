/*
errors.go - Publication failure taxonomy

PURPOSE:
  Publication failures carry machine-readable codes so the caller can
  render exactly which condition failed:

    GATING_FAILED      409-class; governance preconditions not met
    NO_MANAGER_PLANS   409-class; zero plans is its own failure, harder
                       than "not all locked"
    DEAD_RUN_DATA      422-class; the run exists but its payload is
                       numerically dead - fix requires re-running, not
                       re-approving
    ALREADY_PUBLISHED  409-class; a live publication exists and
                       overwrite was not requested
    NOT_PUBLISHED      export requested before any publication
*/
package publish

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeGatingFailed     Code = "GATING_FAILED"
	CodeNoManagerPlans   Code = "NO_MANAGER_PLANS"
	CodeDeadRunData      Code = "DEAD_RUN_DATA"
	CodeAlreadyPublished Code = "ALREADY_PUBLISHED"
	CodeNotPublished     Code = "NOT_PUBLISHED"
)

// ErrReasonRequired is returned when publishing a non-recommended run
// without a reason.
var ErrReasonRequired = errors.New("a reason is required to publish a non-recommended run")

// ErrNotPublished is returned by the exporter when no live publication
// exists for the cycle.
var ErrNotPublished = errors.New("cycle has no live publication")

// GateError is a structured publication failure. Details carry the
// per-condition breakdown for rendering.
type GateError struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsGateError unwraps a GateError if err carries one.
func AsGateError(err error) (*GateError, bool) {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

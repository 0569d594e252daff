/*
errors.go - Centralized error types for the merit engine

PURPOSE:
  All engine-level error types in one place. Downstream packages
  (cycle, publish, api) wrap these with their own context and map
  them to transport status codes.

ERROR CATEGORIES:
  1. Not-found errors   - Unknown cycle/scenario/run/plan
  2. Structural errors  - A run cannot proceed at all (empty snapshot,
                          missing FX rate)
  3. Concurrency errors - Conditional updates that found changed state

Per-employee data problems are NOT errors: they become flags on the
employee's Result row.

SEE ALSO:
  - calculator.go: Raises MissingRateError
  - engine.go: Raises ErrEmptySnapshot
  - store/sqlite: Raises ErrConcurrentModification on lost updates
*/
package merit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCycleNotFound is returned when a referenced cycle doesn't exist.
	ErrCycleNotFound = errors.New("cycle not found")

	// ErrScenarioNotFound is returned when a referenced scenario doesn't exist.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrRunNotFound is returned when a referenced scenario run doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrPlanNotFound is returned when a referenced manager plan doesn't exist.
	ErrPlanNotFound = errors.New("manager plan not found")

	// ErrEmptySnapshot is returned when a scenario's snapshot has no employees.
	// A run with nothing to compute is a structural failure, not a zero-row run.
	ErrEmptySnapshot = errors.New("snapshot contains no employees")

	// ErrMissingRate is returned when an employee's currency has no FX rate
	// into the scenario base currency.
	ErrMissingRate = errors.New("missing fx rate")

	// ErrConcurrentModification is returned when a conditional update finds
	// the row no longer in the expected state.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingRateError identifies the currency that had no rate on file.
type MissingRateError struct {
	Currency     string
	BaseCurrency string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no fx rate from %s to %s", e.Currency, e.BaseCurrency)
}

func (e *MissingRateError) Unwrap() error { return ErrMissingRate }

// RuleError reports an invalid scenario rule parameter.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid rule %s: %s", e.Field, e.Reason)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound) ||
		errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrPlanNotFound)
}

// IsStructural returns true if the error aborts a run outright rather
// than flagging individual employees.
func IsStructural(err error) bool {
	return errors.Is(err, ErrEmptySnapshot) || errors.Is(err, ErrMissingRate)
}

/*
errors.go - Centralized error types for the staging engine

PURPOSE:
  All error values in one place. The propagation policy is strict:
  ambiguity and not-found conditions travel back to the human through the
  caller; nothing is resolved by silently picking a closest match. Degraded
  external dependencies (rate service) never surface here at all; they fail
  soft inside the currency package.

ERROR CATEGORIES:
  1. Lifecycle errors  - Pending-action state machine violations
  2. Payload errors    - Malformed or forged conversational payloads
  3. Creation errors   - Name collisions on requested entity creation

USAGE:
  if errors.Is(err, staging.ErrNotDraft) {
      // the action was already confirmed, cancelled, or executed
  }

SEE ALSO:
  - pending.go: state machine producing the lifecycle errors
  - validation.go: formats field-level problems as ValidationResult entries,
    not errors; a failed validation is a normal outcome, not an error
*/
package staging

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrActionNotFound is returned when a pending-action id does not exist.
	// Confirming a cancelled action lands here: cancel deletes the record.
	ErrActionNotFound = errors.New("pending action not found")

	// ErrNotDraft is returned when a conditional Draft transition finds the
	// action in another state (already confirmed, executed, or raced).
	ErrNotDraft = errors.New("pending action is not in draft state")

	// ErrNotConfirmed is returned when execution is attempted on an action
	// that has not been confirmed, or on one already executed.
	ErrNotConfirmed = errors.New("pending action is not confirmed")

	// ErrNotRetryable is returned when Retry is called on an action that is
	// not in the confirmed-failed state.
	ErrNotRetryable = errors.New("pending action has no failed execution to retry")

	// ErrUnsupportedActionType indicates a programming or configuration
	// error, never user input: the executor has no handler for the type.
	ErrUnsupportedActionType = errors.New("unsupported action type")

	// ErrUnknownPayloadType is returned when decoding a stored payload whose
	// action type has no registered schema.
	ErrUnknownPayloadType = errors.New("unknown payload type")

	// ErrDuplicateName is returned when a requested creation collides with
	// an existing exact or near-exact name. Creation is refused until the
	// user disambiguates.
	ErrDuplicateName = errors.New("name already in use")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StateConflictError reports a failed conditional transition with the state
// actually found, for callers that want to explain the race to the user.
type StateConflictError struct {
	ActionID string
	Expected ActionState
	Actual   ActionState
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("action %s: expected state %s, found %s", e.ActionID, e.Expected, e.Actual)
}

func (e *StateConflictError) Unwrap() error {
	switch e.Expected {
	case StateDraft:
		return ErrNotDraft
	case StateConfirmedFailed:
		return ErrNotRetryable
	default:
		return ErrNotConfirmed
	}
}

// DuplicateNameError carries the colliding names for a refused creation.
type DuplicateNameError struct {
	Kind     EntityKind
	Name     string
	Existing []string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s name %q collides with existing: %s",
		e.Kind, e.Name, strings.Join(e.Existing, ", "))
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

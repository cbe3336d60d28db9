/*
Package staging is the conversational transaction-staging core.

PURPOSE:
  Turns validated free-text financial requests into staged, user-confirmed
  accounting records. The flow:

    draft payload ──▶ ValidationPipeline ──▶ Manager.Create (Draft)
                                                   │
                              user confirms ──▶ Confirm (Draft→Confirmed)
                                                   │
                                            Executor.Execute ──▶ commit
                                                   │
                                  Confirmed→Executed, or →ConfirmedFailed

  Nothing in this package guesses. An ambiguous entity reference or a
  missing record is pushed back to the caller as a ValidationResult entry;
  a record is only ever committed after an explicit confirmation of that
  specific pending action.

KEY CONCEPTS IN THIS FILE (types.go):
  - PendingAction: a staged, not-yet-committed transaction proposal
  - ActionState:   Draft → Confirmed → Executed, with ConfirmedFailed as
                   the recoverable branch when a commit is rejected
  - ValidationResult: accumulated field errors plus advisory missing fields

DESIGN PRINCIPLES:
  1. No silent picks: duplicate or fuzzy matches escalate, never resolve.
  2. Recompute at commit: the executor derives amounts fresh, it does not
     trust the preview's cached numbers.
  3. Plain data out: everything exposed to the caller is framework-free.

SEE ALSO:
  - payload.go:    one strict schema per action type
  - validation.go: the staged field validation order
  - pending.go:    the state machine
  - executor.go:   authoritative amount computation and commit
*/
package staging

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACTION TYPE AND STATE
// =============================================================================

type ActionType string

const (
	ActionIncome  ActionType = "income"
	ActionExpense ActionType = "expense"
	ActionInvoice ActionType = "invoice"
	ActionProject ActionType = "project"
	ActionClient  ActionType = "client"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionIncome, ActionExpense, ActionInvoice, ActionProject, ActionClient:
		return true
	}
	return false
}

type ActionState string

const (
	// StateDraft is the initial state set by Manager.Create.
	StateDraft ActionState = "draft"

	// StateConfirmed is reached only through an explicit user confirmation
	// of that specific action id.
	StateConfirmed ActionState = "confirmed"

	// StateConfirmedFailed marks an action whose confirmation succeeded but
	// whose execution was rejected downstream. It is recoverable: Retry
	// moves it back to Confirmed.
	StateConfirmedFailed ActionState = "confirmed_failed"

	// StateExecuted is terminal, set after the executor reports success.
	StateExecuted ActionState = "executed"

	// StateCancelled never persists: cancelling deletes the record outright.
	// The constant exists for callers describing the lifecycle.
	StateCancelled ActionState = "cancelled"
)

// =============================================================================
// PENDING ACTION
// =============================================================================

// PendingAction is a staged transaction proposal awaiting confirmation. It
// is owned exclusively by the conversation that created it.
type PendingAction struct {
	ID             string
	ConversationID string
	UserID         string
	Type           ActionType
	Payload        Payload
	State          ActionState

	// Version increments on every state transition; stores use it for the
	// optimistic conditional update backing Confirm.
	Version int

	// LastError holds the downstream rejection when State is ConfirmedFailed.
	LastError string

	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult is the outcome of one pipeline run. Valid is true iff
// Errors is empty; MissingFields lists optional-but-recommended fields that
// are simply absent and never block validity.
type ValidationResult struct {
	Valid         bool
	Errors        []string
	MissingFields []string
}

func (r *ValidationResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

func (r *ValidationResult) addMissing(field string) {
	r.MissingFields = append(r.MissingFields, field)
}

// =============================================================================
// ENTITY KINDS AND TAX RATES
// =============================================================================

// EntityKind identifies which named-entity collection a reference targets.
type EntityKind string

const (
	KindClient   EntityKind = "client"
	KindCategory EntityKind = "category"
	KindProject  EntityKind = "project"
	KindTaxRate  EntityKind = "tax_rate"
)

// TaxRate is a configured named rate. Matching against requested rates is
// numeric with a small tolerance, not fuzzy string matching.
type TaxRate struct {
	ID      string
	Name    string
	Percent decimal.Decimal
}

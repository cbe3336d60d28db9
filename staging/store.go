/*
store.go - Persistence interfaces for pending actions and committed records

PURPOSE:
  Defines the two collaborator interfaces this core consumes. The record
  store owns every named entity and committed financial record; this core
  only reads entities and requests creation; it never mutates existing
  ones. The pending-action store owns the staged proposals.

ATOMIC TRANSITIONS:
  PendingActionStore.Transition is conditional: "move to `to` only if the
  current state is `from`". Implementations back it with an optimistic
  check (state + version in the WHERE clause, or the memory-store mutex).
  An unconditional update-then-act would let a confirm race a cancel.

IMPLEMENTATIONS:
  - store/sqlite:        production store, both interfaces
  - staging/store:       in-memory, both interfaces, for tests and demos

SEE ALSO:
  - pending.go: the manager driving Transition
  - executor.go: the only writer of committed records
*/
package staging

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledgerflow/currency"
	"github.com/warp/ledgerflow/match"
)

// =============================================================================
// PENDING ACTION STORE
// =============================================================================

type PendingActionStore interface {
	// Create persists a new action. The action arrives fully populated
	// (id, state Draft, timestamps); Create only stores it.
	Create(ctx context.Context, action *PendingAction) error

	// Get returns the action or ErrActionNotFound.
	Get(ctx context.Context, id string) (*PendingAction, error)

	// Transition atomically moves the action from one state to another,
	// failing with a StateConflictError when the current state differs
	// from `from`, or ErrActionNotFound when the id is gone. lastError is
	// stored alongside (empty clears it). Returns the updated action.
	Transition(ctx context.Context, id string, from, to ActionState, lastError string) (*PendingAction, error)

	// Delete removes the action outright. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id string) error

	// LatestDraft returns the most recently created action still in Draft
	// for the conversation, or nil when there is none.
	LatestDraft(ctx context.Context, conversationID string) (*PendingAction, error)
}

// =============================================================================
// RECORD STORE (external collaborator)
// =============================================================================

type RecordStore interface {
	ListClients(ctx context.Context, userID string) ([]match.Entity, error)
	ListCategories(ctx context.Context, userID string) ([]match.Entity, error)
	// ListProjects is scoped to a client; project references only resolve
	// once their client has.
	ListProjects(ctx context.Context, userID, clientID string) ([]match.Entity, error)
	ListTaxRates(ctx context.Context, userID string) ([]TaxRate, error)

	// SimilarNames returns existing names that collide exactly or nearly
	// with name, for refusing duplicate creation.
	SimilarNames(ctx context.Context, userID string, kind EntityKind, name string) ([]string, error)

	CreateIncome(ctx context.Context, rec IncomeRecord) (string, error)
	CreateExpense(ctx context.Context, rec ExpenseRecord) (string, error)
	// CreateInvoice commits the invoice and its lines as one atomic create.
	CreateInvoice(ctx context.Context, rec InvoiceRecord) (string, error)
	CreateProject(ctx context.Context, rec ProjectRecord) (string, error)
	CreateClient(ctx context.Context, rec ClientRecord) (string, error)
}

// =============================================================================
// COMMITTED RECORD SHAPES
// =============================================================================

// IncomeRecord is the authoritative shape committed for an income action.
// Amount and TaxAmount share one resolved exchange rate.
type IncomeRecord struct {
	UserID          string
	Description     string
	Date            time.Time
	CategoryID      string
	ClientID        string
	ProjectID       string
	ReferenceNumber string
	TaxRatePercent  decimal.Decimal
	Amount          currency.Money
	TaxAmount       currency.Money
}

type ExpenseRecord struct {
	UserID          string
	Description     string
	Date            time.Time
	CategoryID      string
	ReferenceNumber string
	Amount          currency.Money
}

type InvoiceRecordLine struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal // quantity x rate, native currency
}

// InvoiceRecord carries no status field at all: the store assigns the
// default initial status on creation.
type InvoiceRecord struct {
	UserID         string
	ClientID       string
	IssueDate      time.Time
	DueDate        time.Time
	Notes          string
	TaxRatePercent decimal.Decimal
	Lines          []InvoiceRecordLine
	Subtotal       currency.Money
	Tax            currency.Money
	Total          currency.Money
}

type ProjectRecord struct {
	UserID      string
	Name        string
	ClientID    string
	Description string
	Budget      currency.Money
}

type ClientRecord struct {
	UserID   string
	Name     string
	Email    string
	Address  string
	Currency string
}

/*
executor.go - Commits confirmed actions to the record store

PURPOSE:
  The last step of the pipeline, thin but high-stakes: money and lifecycle
  fields flow through here. Given a Confirmed action, the executor
  recomputes every derived value at execution time rather than trusting the
  preview's cached numbers, then commits one create call.

AMOUNT RULES:
  - income:  tax amount = rate x amount; principal and tax convert to base
             currency with ONE resolved rate, computed once and reused, so
             the record carries no intra-record rounding skew.
  - invoice: line amount = quantity x rate; subtotal = sum of lines;
             tax = subtotal x rate/100; total = subtotal + tax; subtotal,
             tax, and total share one resolved rate. The payload's status
             field is never committed; the record store assigns the
             default initial status.
  - expense/project/client: pass-through create, currency conversion only.

FAILURE MODES:
  An unsupported action type is a programming/config error (fatal, not
  user-facing). A downstream creation rejection is returned verbatim with
  no automatic retry; the caller decides whether to re-prompt the user.
*/
package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledgerflow/currency"
)

// ExecutionResult reports a successful commit.
type ExecutionResult struct {
	ActionID   string
	ActionType ActionType
	RecordID   string
}

// Executor recomputes authoritative amounts and commits confirmed actions.
type Executor struct {
	records   RecordStore
	converter *currency.Converter
	clock     func() time.Time
}

func NewExecutor(records RecordStore, converter *currency.Converter) *Executor {
	return &Executor{records: records, converter: converter, clock: time.Now}
}

// WithClock overrides the executor's clock, used when a payload carries no
// explicit date.
func (e *Executor) WithClock(clock func() time.Time) *Executor {
	e.clock = clock
	return e
}

// Execute commits the action. The action must be Confirmed; the caller
// records the outcome through Manager.MarkExecuted / Manager.MarkFailed.
func (e *Executor) Execute(ctx context.Context, action *PendingAction) (*ExecutionResult, error) {
	if action == nil {
		return nil, ErrActionNotFound
	}
	if action.State != StateConfirmed {
		return nil, &StateConflictError{ActionID: action.ID, Expected: StateConfirmed, Actual: action.State}
	}

	var (
		recordID string
		err      error
	)
	switch payload := action.Payload.(type) {
	case IncomePayload:
		recordID, err = e.executeIncome(ctx, action.UserID, payload)
	case ExpensePayload:
		recordID, err = e.executeExpense(ctx, action.UserID, payload)
	case InvoicePayload:
		recordID, err = e.executeInvoice(ctx, action.UserID, payload)
	case ProjectPayload:
		recordID, err = e.executeProject(ctx, action.UserID, payload)
	case ClientPayload:
		recordID, err = e.executeClient(ctx, action.UserID, payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedActionType, action.Type)
	}
	if err != nil {
		// Downstream rejection, surfaced verbatim. No retry here.
		return nil, err
	}

	return &ExecutionResult{ActionID: action.ID, ActionType: action.Type, RecordID: recordID}, nil
}

// =============================================================================
// PER-TYPE COMMITS
// =============================================================================

func (e *Executor) executeIncome(ctx context.Context, userID string, pl IncomePayload) (string, error) {
	// One resolved rate for principal and tax.
	principal := e.converter.MoneyFromNative(ctx, pl.Amount, pl.Currency)
	taxNative := pl.Amount.Mul(pl.TaxRatePercent).DivRound(hundred, 6)
	tax := currency.NewMoney(taxNative, pl.Currency, principal.ExchangeRate)

	return e.records.CreateIncome(ctx, IncomeRecord{
		UserID:          userID,
		Description:     pl.Description,
		Date:            e.dateOrNow(pl.Date),
		CategoryID:      pl.CategoryID,
		ClientID:        pl.ClientID,
		ProjectID:       pl.ProjectID,
		ReferenceNumber: pl.ReferenceNumber,
		TaxRatePercent:  pl.TaxRatePercent,
		Amount:          principal,
		TaxAmount:       tax,
	})
}

func (e *Executor) executeExpense(ctx context.Context, userID string, pl ExpensePayload) (string, error) {
	return e.records.CreateExpense(ctx, ExpenseRecord{
		UserID:          userID,
		Description:     pl.Description,
		Date:            e.dateOrNow(pl.Date),
		CategoryID:      pl.CategoryID,
		ReferenceNumber: pl.ReferenceNumber,
		Amount:          e.converter.MoneyFromNative(ctx, pl.Amount, pl.Currency),
	})
}

func (e *Executor) executeInvoice(ctx context.Context, userID string, pl InvoicePayload) (string, error) {
	lines := make([]InvoiceRecordLine, 0, len(pl.Lines))
	subtotalNative := decimal.Zero
	for _, line := range pl.Lines {
		amount := line.Quantity.Mul(line.Rate)
		subtotalNative = subtotalNative.Add(amount)
		lines = append(lines, InvoiceRecordLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			Rate:        line.Rate,
			Amount:      amount,
		})
	}

	// Subtotal, tax, and total share the rate resolved for the subtotal.
	subtotal := e.converter.MoneyFromNative(ctx, subtotalNative, pl.Currency)
	taxNative := subtotalNative.Mul(pl.TaxRatePercent).DivRound(hundred, 6)
	tax := currency.NewMoney(taxNative, pl.Currency, subtotal.ExchangeRate)
	total := currency.NewMoney(subtotalNative.Add(taxNative), pl.Currency, subtotal.ExchangeRate)

	// InvoiceRecord has no status field: pl.Status is dropped here and the
	// record store assigns the default initial status.
	return e.records.CreateInvoice(ctx, InvoiceRecord{
		UserID:         userID,
		ClientID:       pl.ClientID,
		IssueDate:      e.dateOrNow(pl.IssueDate),
		DueDate:        pl.DueDate,
		Notes:          pl.Notes,
		TaxRatePercent: pl.TaxRatePercent,
		Lines:          lines,
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          total,
	})
}

func (e *Executor) executeProject(ctx context.Context, userID string, pl ProjectPayload) (string, error) {
	cur := pl.Currency
	if cur == "" {
		cur = e.converter.BaseCurrency()
	}
	return e.records.CreateProject(ctx, ProjectRecord{
		UserID:      userID,
		Name:        pl.Name,
		ClientID:    pl.ClientID,
		Description: pl.Description,
		Budget:      e.converter.MoneyFromNative(ctx, pl.Budget, cur),
	})
}

func (e *Executor) executeClient(ctx context.Context, userID string, pl ClientPayload) (string, error) {
	cur := pl.Currency
	if cur == "" {
		cur = e.converter.BaseCurrency()
	}
	return e.records.CreateClient(ctx, ClientRecord{
		UserID:   userID,
		Name:     pl.Name,
		Email:    pl.Email,
		Address:  pl.Address,
		Currency: cur,
	})
}

func (e *Executor) dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		now := e.clock().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t
}

var hundred = decimal.New(100, 0)

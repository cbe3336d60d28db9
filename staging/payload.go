/*
payload.go - Tagged-union payloads, one strict schema per action type

PURPOSE:
  A conversational payload reaches this package as loosely structured data.
  Before anything touches the state machine it is decoded into exactly one
  of the variants below, with unknown fields rejected. The action type is
  the tag; DecodePayload is the single boundary.

  Reference fields come in pairs: the free-text reference the user spoke
  (ClientRef) and the resolved id the pipeline fills in (ClientID). The
  executor only ever reads resolved ids.

SAFETY RULE:
  InvoicePayload carries a Status field because callers send one; the
  executor never copies it to the committed record. The record store
  assigns its own default initial status, so a conversational payload can
  never forge a transaction's lifecycle stage.
*/
package staging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the tagged union of stageable drafts. Implementations are the
// five concrete payload structs; the tag is the action type.
type Payload interface {
	ActionType() ActionType
}

// =============================================================================
// VARIANTS
// =============================================================================

// IncomePayload stages a received payment.
type IncomePayload struct {
	Description     string          `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Date            time.Time       `json:"date,omitempty"`
	CategoryRef     string          `json:"category_ref,omitempty"`
	CategoryID      string          `json:"category_id,omitempty"`
	ClientRef       string          `json:"client_ref,omitempty"`
	ClientID        string          `json:"client_id,omitempty"`
	ProjectRef      string          `json:"project_ref,omitempty"`
	ProjectID       string          `json:"project_id,omitempty"`
	TaxRatePercent  decimal.Decimal `json:"tax_rate_percent,omitempty"`
	TaxRateID       string          `json:"tax_rate_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
}

func (IncomePayload) ActionType() ActionType { return ActionIncome }

// ExpensePayload stages an outgoing payment.
type ExpensePayload struct {
	Description     string          `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Date            time.Time       `json:"date,omitempty"`
	CategoryRef     string          `json:"category_ref,omitempty"`
	CategoryID      string          `json:"category_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
}

func (ExpensePayload) ActionType() ActionType { return ActionExpense }

// InvoiceLine is one line of a staged invoice. Amount is derived at
// execution time (quantity x rate); a value provided here is preview-only.
type InvoiceLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// InvoicePayload stages an invoice with line items.
type InvoicePayload struct {
	ClientRef      string          `json:"client_ref,omitempty"`
	ClientID       string          `json:"client_id,omitempty"`
	Currency       string          `json:"currency"`
	IssueDate      time.Time       `json:"issue_date,omitempty"`
	DueDate        time.Time       `json:"due_date,omitempty"`
	Lines          []InvoiceLine   `json:"lines"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent,omitempty"`
	TaxRateID      string          `json:"tax_rate_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`

	// Status is accepted for decoding but NEVER committed; the record store
	// assigns the initial status. See the safety rule above.
	Status string `json:"status,omitempty"`
}

func (InvoicePayload) ActionType() ActionType { return ActionInvoice }

// ProjectPayload stages creation of a project, which must belong to a client.
type ProjectPayload struct {
	Name        string          `json:"name"`
	ClientRef   string          `json:"client_ref,omitempty"`
	ClientID    string          `json:"client_id,omitempty"`
	Budget      decimal.Decimal `json:"budget,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (ProjectPayload) ActionType() ActionType { return ActionProject }

// ClientPayload stages creation of a client.
type ClientPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address,omitempty"`
	Currency string `json:"currency,omitempty"`
}

func (ClientPayload) ActionType() ActionType { return ActionClient }

// =============================================================================
// BOUNDARY CODEC
// =============================================================================

// DecodePayload decodes raw JSON into the variant for actionType. Unknown
// fields are rejected: a payload that does not fit its schema never reaches
// the state machine.
func DecodePayload(actionType ActionType, raw []byte) (Payload, error) {
	var target Payload
	switch actionType {
	case ActionIncome:
		target = &IncomePayload{}
	case ActionExpense:
		target = &ExpensePayload{}
	case ActionInvoice:
		target = &InvoicePayload{}
	case ActionProject:
		target = &ProjectPayload{}
	case ActionClient:
		target = &ClientPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPayloadType, actionType)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", actionType, err)
	}

	switch p := target.(type) {
	case *IncomePayload:
		return *p, nil
	case *ExpensePayload:
		return *p, nil
	case *InvoicePayload:
		return *p, nil
	case *ProjectPayload:
		return *p, nil
	case *ClientPayload:
		return *p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPayloadType, actionType)
}

// EncodePayload serializes a payload for persistence.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.ActionType(), err)
	}
	return data, nil
}

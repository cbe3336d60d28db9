/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

PAYLOADS:
  Action payloads cross the boundary as raw JSON and are decoded strictly
  against the variant for the declared action type. The DTO layer never
  reinterprets them.

SEE ALSO:
  - handlers.go: Uses these types
  - staging/payload.go: Payload variants and the boundary codec
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/ledgerflow/staging"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// StageActionRequest proposes a new action for validation and staging.
type StageActionRequest struct {
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
}

// ValidationDTO mirrors staging.ValidationResult for clients.
type ValidationDTO struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ActionDTO represents a pending action in API responses.
type ActionDTO struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	State          string          `json:"state"`
	Version        int             `json:"version"`
	LastError      string          `json:"last_error,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      string          `json:"created_at"`
	ResolvedAt     string          `json:"resolved_at,omitempty"`
}

// StageActionResponse pairs the staged draft with its validation outcome.
type StageActionResponse struct {
	Action     *ActionDTO    `json:"action,omitempty"`
	Validation ValidationDTO `json:"validation"`
}

// ExecutionDTO reports a successful confirm-and-execute.
type ExecutionDTO struct {
	Action   *ActionDTO `json:"action"`
	RecordID string     `json:"record_id"`
}

// EntityDTO represents a resolvable named entity.
type EntityDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SecondaryName string `json:"secondary_name,omitempty"`
}

// CreateClientRequest creates a client directly, outside the staging flow.
type CreateClientRequest struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Currency string `json:"currency"`
}

// CreateCategoryRequest creates a category.
type CreateCategoryRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// CreateTaxRateRequest creates a named tax rate.
type CreateTaxRateRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Percent string `json:"percent"`
}

// TaxRateDTO represents a configured tax rate.
type TaxRateDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Percent string `json:"percent"`
}

// DateRangeDTO is a parsed date query result.
type DateRangeDTO struct {
	Matched string `json:"matched,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	// Degraded is set when no date form matched and the caller should fall
	// back to the reference period.
	Degraded      bool   `json:"degraded"`
	ReferenceDate string `json:"reference_date"`
}

// RateDTO is a resolved exchange rate.
type RateDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toActionDTO(a *staging.PendingAction) *ActionDTO {
	if a == nil {
		return nil
	}
	payload, _ := staging.EncodePayload(a.Payload)
	dto := &ActionDTO{
		ID:             a.ID,
		ConversationID: a.ConversationID,
		UserID:         a.UserID,
		Type:           string(a.Type),
		State:          string(a.State),
		Version:        a.Version,
		LastError:      a.LastError,
		Payload:        payload,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
	if a.ResolvedAt != nil {
		dto.ResolvedAt = a.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

func toValidationDTO(res staging.ValidationResult) ValidationDTO {
	return ValidationDTO{
		Valid:         res.Valid,
		Errors:        res.Errors,
		MissingFields: res.MissingFields,
	}
}

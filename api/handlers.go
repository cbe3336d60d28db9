/*
handlers.go - HTTP API handlers for the transaction-staging pipeline

PURPOSE:
  Exposes the staging pipeline via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Actions:
    POST   /api/actions                 Validate and stage a draft
    GET    /api/actions/latest          Latest pending draft of a conversation
    GET    /api/actions/{id}            Get one action
    POST   /api/actions/{id}/confirm    Confirm and execute
    POST   /api/actions/{id}/cancel     Discard a draft
    POST   /api/actions/{id}/retry      Re-arm and re-execute a failed action

  Entities:
    GET    /api/clients                 List clients
    POST   /api/clients                 Create client (duplicate names refused)
    GET    /api/categories              List categories
    POST   /api/categories              Create category
    GET    /api/projects                List projects of a client
    GET    /api/tax-rates               List tax rates
    POST   /api/tax-rates               Create tax rate

  Utilities:
    GET    /api/dates/parse             Parse a natural-language date query
    GET    /api/rates                   Resolve an exchange rate

REQUEST FLOW (staging):
  1. Decode the envelope, then decode the payload strictly for its type
  2. Run the validation pipeline; invalid drafts are never persisted
  3. Stage the resolved payload as a Draft
  4. Confirm/execute happen on separate calls, driven by the user's reply

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, unknown action type, bad payload shape
  - 404: Action not found
  - 409: State conflict (double confirm, retry of a non-failed action)
  - 422: Validation failed (the body carries the accumulated errors)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Multi-tenant isolation is assumed to be
  enforced upstream; user_id arrives trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - staging/: the domain logic these handlers drive
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/ledgerflow/currency"
	"github.com/warp/ledgerflow/datequery"
	"github.com/warp/ledgerflow/match"
	"github.com/warp/ledgerflow/staging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ReferenceStore is the slice of the store that creates non-staged
// reference data (categories, tax rates).
type ReferenceStore interface {
	CreateCategory(ctx context.Context, userID, name string) (string, error)
	CreateTaxRate(ctx context.Context, userID, name string, percent decimal.Decimal) (string, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Records   staging.RecordStore
	Reference ReferenceStore
	Pipeline  *staging.Pipeline
	Manager   *staging.Manager
	Executor  *staging.Executor
	Converter *currency.Converter
	Logger    *slog.Logger
}

// =============================================================================
// ACTION HANDLERS
// =============================================================================

// StageAction validates a proposed action and stages it as a Draft.
// POST /api/actions
func (h *Handler) StageAction(w http.ResponseWriter, r *http.Request) {
	var req StageActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ConversationID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and user_id are required", nil)
		return
	}

	actionType := staging.ActionType(req.Type)
	if !actionType.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown action type", nil)
		return
	}

	payload, err := staging.DecodePayload(actionType, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload", err)
		return
	}

	resolved, validation, err := h.Pipeline.Validate(r.Context(), req.UserID, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return
	}
	if !validation.Valid {
		// The draft is never persisted; the caller re-prompts the user with
		// the accumulated problems.
		writeJSON(w, http.StatusUnprocessableEntity, StageActionResponse{
			Validation: toValidationDTO(validation),
		})
		return
	}

	action, err := h.Manager.Create(r.Context(), req.ConversationID, req.UserID, resolved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to stage action", err)
		return
	}

	writeJSON(w, http.StatusCreated, StageActionResponse{
		Action:     toActionDTO(action),
		Validation: toValidationDTO(validation),
	})
}

// GetAction returns a single pending action.
// GET /api/actions/{id}
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	action, err := h.Manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActionDTO(action))
}

// LatestAction returns the conversation's most recent still-Draft action.
// GET /api/actions/latest?conversation_id=...
func (h *Handler) LatestAction(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required", nil)
		return
	}

	action, err := h.Manager.LatestPending(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up pending action", err)
		return
	}
	if action == nil {
		writeError(w, http.StatusNotFound, "No pending action for this conversation", nil)
		return
	}
	writeJSON(w, http.StatusOK, toActionDTO(action))
}

// ConfirmAction confirms a draft and immediately executes it.
// POST /api/actions/{id}/confirm
func (h *Handler) ConfirmAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	action, err := h.Manager.Confirm(r.Context(), id)
	if err != nil {
		writeActionError(w, err)
		return
	}

	h.executeConfirmed(w, r, action)
}

// CancelAction discards a draft outright. Idempotent.
// POST /api/actions/{id}/cancel
func (h *Handler) CancelAction(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cancel action", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryAction re-arms a failed action and executes it again.
// POST /api/actions/{id}/retry
func (h *Handler) RetryAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	action, err := h.Manager.Retry(r.Context(), id)
	if err != nil {
		writeActionError(w, err)
		return
	}

	h.executeConfirmed(w, r, action)
}

// executeConfirmed runs the executor for a just-confirmed action and records
// the outcome on the state machine either way.
func (h *Handler) executeConfirmed(w http.ResponseWriter, r *http.Request, action *staging.PendingAction) {
	result, execErr := h.Executor.Execute(r.Context(), action)
	if execErr != nil {
		failed, err := h.Manager.MarkFailed(r.Context(), action.ID, execErr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to record execution failure", err)
			return
		}
		h.Logger.Warn("action execution rejected",
			"action_id", action.ID, "type", action.Type, "err", execErr)
		writeJSON(w, http.StatusBadGateway, struct {
			Action *ActionDTO `json:"action"`
			Error  string     `json:"error"`
		}{Action: toActionDTO(failed), Error: execErr.Error()})
		return
	}

	executed, err := h.Manager.MarkExecuted(r.Context(), action.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record execution", err)
		return
	}

	writeJSON(w, http.StatusOK, ExecutionDTO{
		Action:   toActionDTO(executed),
		RecordID: result.RecordID,
	})
}

// =============================================================================
// ENTITY HANDLERS
// =============================================================================

// ListClients returns the user's clients.
// GET /api/clients?user_id=...
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	h.listEntities(w, r, h.Records.ListClients)
}

// ListCategories returns the user's categories.
// GET /api/categories?user_id=...
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.listEntities(w, r, h.Records.ListCategories)
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID string) ([]match.Entity, error)) {

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	entities, err := list(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entities", err)
		return
	}

	dtos := make([]EntityDTO, len(entities))
	for i, e := range entities {
		dtos[i] = EntityDTO{ID: e.ID, Name: e.PrimaryName, SecondaryName: e.SecondaryName}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListProjects returns the projects of one client.
// GET /api/projects?user_id=...&client_id=...
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	clientID := r.URL.Query().Get("client_id")
	if userID == "" || clientID == "" {
		writeError(w, http.StatusBadRequest, "user_id and client_id are required", nil)
		return
	}

	entities, err := h.Records.ListProjects(r.Context(), userID, clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	dtos := make([]EntityDTO, len(entities))
	for i, e := range entities {
		dtos[i] = EntityDTO{ID: e.ID, Name: e.PrimaryName}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient creates a client directly, refusing near-duplicate names.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required", nil)
		return
	}

	if !h.checkNameFree(w, r, req.UserID, staging.KindClient, req.Name) {
		return
	}

	cur := req.Currency
	if cur == "" {
		cur = h.Converter.BaseCurrency()
	}
	id, err := h.Records.CreateClient(r.Context(), staging.ClientRecord{
		UserID:   req.UserID,
		Name:     req.Name,
		Email:    req.Email,
		Address:  req.Address,
		Currency: cur,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, EntityDTO{ID: id, Name: req.Name})
}

// CreateCategory creates a category, refusing near-duplicate names.
// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required", nil)
		return
	}

	if !h.checkNameFree(w, r, req.UserID, staging.KindCategory, req.Name) {
		return
	}

	id, err := h.Reference.CreateCategory(r.Context(), req.UserID, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, EntityDTO{ID: id, Name: req.Name})
}

// ListTaxRates returns the configured tax rates.
// GET /api/tax-rates?user_id=...
func (h *Handler) ListTaxRates(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	rates, err := h.Records.ListTaxRates(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tax rates", err)
		return
	}

	dtos := make([]TaxRateDTO, len(rates))
	for i, tr := range rates {
		dtos[i] = TaxRateDTO{ID: tr.ID, Name: tr.Name, Percent: tr.Percent.String()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTaxRate creates a named tax rate.
// POST /api/tax-rates
func (h *Handler) CreateTaxRate(w http.ResponseWriter, r *http.Request) {
	var req CreateTaxRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required", nil)
		return
	}
	percent, err := decimal.NewFromString(req.Percent)
	if err != nil || !percent.IsPositive() {
		writeError(w, http.StatusBadRequest, "percent must be a positive decimal", err)
		return
	}

	if !h.checkNameFree(w, r, req.UserID, staging.KindTaxRate, req.Name) {
		return
	}

	id, err := h.Reference.CreateTaxRate(r.Context(), req.UserID, req.Name, percent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create tax rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, TaxRateDTO{ID: id, Name: req.Name, Percent: percent.String()})
}

// checkNameFree refuses creation when a near-duplicate name exists. Returns
// false after writing the refusal.
func (h *Handler) checkNameFree(w http.ResponseWriter, r *http.Request, userID string, kind staging.EntityKind, name string) bool {
	existing, err := h.Records.SimilarNames(r.Context(), userID, kind, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check name uniqueness", err)
		return false
	}
	if len(existing) > 0 {
		writeError(w, http.StatusConflict, "Name collides with existing",
			&staging.DuplicateNameError{Kind: kind, Name: name, Existing: existing})
		return false
	}
	return true
}

// =============================================================================
// UTILITY HANDLERS
// =============================================================================

// ParseDates parses a natural-language date query.
// GET /api/dates/parse?q=last+week&reference=2025-11-12
func (h *Handler) ParseDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required", nil)
		return
	}

	reference := time.Now().UTC()
	if ref := r.URL.Query().Get("reference"); ref != "" {
		parsed, err := time.Parse("2006-01-02", ref)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid reference date (use YYYY-MM-DD)", err)
			return
		}
		reference = parsed
	}

	result := datequery.Parse(q, reference)
	dto := DateRangeDTO{
		ReferenceDate: result.ReferenceDate.Format("2006-01-02"),
		Degraded:      result.Range == nil,
	}
	if result.Range != nil {
		dto.Matched = result.Matched
		dto.Start = result.Range.Start.Format("2006-01-02")
		dto.End = result.Range.End.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetRate resolves an exchange rate through the converter's fallback tiers.
// GET /api/rates?from=USD&to=EUR
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		writeError(w, http.StatusBadRequest, "from is required", nil)
		return
	}
	if to == "" {
		to = h.Converter.BaseCurrency()
	}

	rate := h.Converter.Rate(r.Context(), from, to)
	writeJSON(w, http.StatusOK, RateDTO{From: from, To: to, Rate: rate.String()})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staging.ErrActionNotFound):
		writeError(w, http.StatusNotFound, "Action not found", nil)
	case errors.Is(err, staging.ErrNotDraft):
		writeError(w, http.StatusConflict, "Action is no longer a draft", err)
	case errors.Is(err, staging.ErrNotRetryable):
		writeError(w, http.StatusConflict, "Action is not in a retryable state", err)
	case errors.Is(err, staging.ErrNotConfirmed):
		writeError(w, http.StatusConflict, "Action is not confirmed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Action operation failed", err)
	}
}

func decodeBody(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

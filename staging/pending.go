/*
pending.go - Pending-action state machine

PURPOSE:
  Owns the lifecycle of staged proposals:

      create            confirm              execute ok
    ───────▶ Draft ───────────▶ Confirmed ─────────────▶ Executed
               │                 │      ▲
               │ cancel          │ fail │ retry
               ▼                 ▼      │
            (deleted)       ConfirmedFailed

  Confirm is a GUARDED transition: the store moves Draft→Confirmed only if
  the action is still Draft, atomically. Confirming a cancelled action
  fails with not-found (cancel deletes the record); confirming twice fails
  with ErrNotDraft. Nothing here commits financial records; that is the
  executor's job, invoked separately after Confirm succeeds.

CONFIRMED-FAILED:
  Confirmation and execution are two calls. When execution is rejected
  downstream, MarkFailed parks the action in ConfirmedFailed with the
  rejection text; Retry moves it back to Confirmed for another attempt.
  Without this state a rejected execution would strand the action in
  Confirmed with no recovery path.

ADDRESSING:
  Only the most recently created still-Draft action of a conversation is
  addressable without an id, so a turn like "yes, do it" resolves to the
  thing just proposed.
*/
package staging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Manager drives the pending-action lifecycle against a PendingActionStore.
type Manager struct {
	store PendingActionStore
	clock func() time.Time
}

func NewManager(store PendingActionStore) *Manager {
	return &Manager{store: store, clock: time.Now}
}

// WithClock overrides the manager's clock. Tests use it to pin CreatedAt.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Create stages a validated payload as a Draft and persists it immediately.
func (m *Manager) Create(ctx context.Context, conversationID, userID string, payload Payload) (*PendingAction, error) {
	action := &PendingAction{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           payload.ActionType(),
		Payload:        payload,
		State:          StateDraft,
		Version:        1,
		CreatedAt:      m.clock().UTC(),
	}
	if err := m.store.Create(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// Confirm moves the action Draft→Confirmed, guarded: a nonexistent id or an
// action in any other state fails, it never silently succeeds.
func (m *Manager) Confirm(ctx context.Context, id string) (*PendingAction, error) {
	return m.store.Transition(ctx, id, StateDraft, StateConfirmed, "")
}

// Cancel discards the action outright. Idempotent: cancelling an already
// cancelled (deleted) id is a no-op, not an error.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// LatestPending returns the conversation's most recently created action
// still in Draft, or nil when nothing is pending.
func (m *Manager) LatestPending(ctx context.Context, conversationID string) (*PendingAction, error) {
	return m.store.LatestDraft(ctx, conversationID)
}

// Get returns the action by id.
func (m *Manager) Get(ctx context.Context, id string) (*PendingAction, error) {
	return m.store.Get(ctx, id)
}

// MarkExecuted records a successful execution, Confirmed→Executed.
func (m *Manager) MarkExecuted(ctx context.Context, id string) (*PendingAction, error) {
	return m.store.Transition(ctx, id, StateConfirmed, StateExecuted, "")
}

// MarkFailed records a downstream rejection, Confirmed→ConfirmedFailed,
// keeping the rejection text for the caller to re-present.
func (m *Manager) MarkFailed(ctx context.Context, id string, execErr error) (*PendingAction, error) {
	msg := ""
	if execErr != nil {
		msg = execErr.Error()
	}
	return m.store.Transition(ctx, id, StateConfirmed, StateConfirmedFailed, msg)
}

// Retry re-arms a failed action, ConfirmedFailed→Confirmed.
func (m *Manager) Retry(ctx context.Context, id string) (*PendingAction, error) {
	return m.store.Transition(ctx, id, StateConfirmedFailed, StateConfirmed, "")
}

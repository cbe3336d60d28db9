/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements both persistence interfaces using SQLite. In production the
  same patterns apply to PostgreSQL, only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  staging.PendingActionStore: staged proposals and their state machine
  staging.RecordStore:        named entities and committed financial records

CONDITIONAL TRANSITIONS:
  Transition compiles to a single conditional UPDATE:

      UPDATE pending_actions SET state = ? ... WHERE id = ? AND state = ?

  Zero rows affected means either the id is gone or another caller won the
  race; a follow-up SELECT under the same mutex tells which. An
  unconditional read-then-write would let a confirm race a cancel.

AMOUNT COLUMNS:
  Monetary values are stored as exact decimal strings (native amount,
  resolved rate, base amount), never floats. The base amount is persisted
  rather than recomputed on read so a record always reports the rate that
  was actually applied at commit time.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MIGRATION:
  Versioned migrations are embedded and applied on New() through
  golang-migrate. Use ":memory:" for throwaway databases in tests.

SEE ALSO:
  - staging/store.go: interface definitions
  - staging/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/ledgerflow/staging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store implements both storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store with the given database path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// =============================================================================
// PENDING ACTION STORE (staging.PendingActionStore interface)
// =============================================================================

// Create persists a freshly staged draft.
func (s *Store) Create(ctx context.Context, action *staging.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := staging.EncodePayload(action.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pending_actions
		(id, conversation_id, user_id, action_type, payload_json, state, version, last_error, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		action.ID,
		action.ConversationID,
		action.UserID,
		string(action.Type),
		string(payloadJSON),
		string(action.State),
		action.Version,
		action.LastError,
		action.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(action.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending action: %w", err)
	}
	return nil
}

// Get returns the action or staging.ErrActionNotFound.
func (s *Store) Get(ctx context.Context, id string) (*staging.PendingAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAction(ctx, id)
}

func (s *Store) getAction(ctx context.Context, id string) (*staging.PendingAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, user_id, action_type, payload_json, state, version, last_error, created_at, resolved_at
		FROM pending_actions WHERE id = ?
	`, id)
	return scanAction(row)
}

// Transition atomically moves the action between states. The WHERE clause
// carries the expected current state; zero rows affected is disambiguated
// with a follow-up read.
func (s *Store) Transition(ctx context.Context, id string, from, to staging.ActionState, lastError string) (*staging.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resolvedAt any
	if to == staging.StateExecuted {
		resolvedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_actions
		SET state = ?, version = version + 1, last_error = ?,
		    resolved_at = COALESCE(?, resolved_at)
		WHERE id = ? AND state = ?
	`, string(to), lastError, resolvedAt, id, string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to transition pending action: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		current, err := s.getAction(ctx, id)
		if err != nil {
			return nil, err // not found
		}
		return nil, &staging.StateConflictError{ActionID: id, Expected: from, Actual: current.State}
	}

	return s.getAction(ctx, id)
}

// Delete removes the action outright. Deleting a missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending action: %w", err)
	}
	return nil
}

// LatestDraft returns the conversation's most recently created still-Draft
// action, or nil when there is none. rowid breaks creation-timestamp ties by
// insertion order.
func (s *Store) LatestDraft(ctx context.Context, conversationID string) (*staging.PendingAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, user_id, action_type, payload_json, state, version, last_error, created_at, resolved_at
		FROM pending_actions
		WHERE conversation_id = ? AND state = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, conversationID, string(staging.StateDraft))

	action, err := scanAction(row)
	if err == staging.ErrActionNotFound {
		return nil, nil
	}
	return action, err
}

func scanAction(row *sql.Row) (*staging.PendingAction, error) {
	var (
		a           staging.PendingAction
		actionType  string
		payloadJSON string
		state       string
		createdAt   string
		resolvedAt  sql.NullString
	)
	err := row.Scan(&a.ID, &a.ConversationID, &a.UserID, &actionType, &payloadJSON,
		&state, &a.Version, &a.LastError, &createdAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, staging.ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending action: %w", err)
	}

	a.Type = staging.ActionType(actionType)
	a.State = staging.ActionState(state)

	a.Payload, err = staging.DecodePayload(a.Type, []byte(payloadJSON))
	if err != nil {
		return nil, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if resolvedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse resolved_at: %w", err)
		}
		a.ResolvedAt = &t
	}
	return &a, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Package store provides PendingActionStore and RecordStore implementations.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/warp/ledgerflow/match"
	"github.com/warp/ledgerflow/staging"
)

// =============================================================================
// MEMORY PENDING-ACTION STORE - In-memory implementation (for testing/dev)
// =============================================================================

type MemoryPending struct {
	mu      sync.RWMutex
	actions map[string]staging.PendingAction
	seq     map[string]uint64
	nextSeq uint64
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{
		actions: make(map[string]staging.PendingAction),
		seq:     make(map[string]uint64),
	}
}

func (m *MemoryPending) Create(_ context.Context, action *staging.PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = *action
	m.nextSeq++
	m.seq[action.ID] = m.nextSeq
	return nil
}

func (m *MemoryPending) Get(_ context.Context, id string) (*staging.PendingAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	action, ok := m.actions[id]
	if !ok {
		return nil, staging.ErrActionNotFound
	}
	return &action, nil
}

// Transition performs the conditional update: the write happens only while
// the stored state still equals from. The mutex stands in for the WHERE
// clause the sqlite store uses.
func (m *MemoryPending) Transition(_ context.Context, id string, from, to staging.ActionState, lastError string) (*staging.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	action, ok := m.actions[id]
	if !ok {
		return nil, staging.ErrActionNotFound
	}
	if action.State != from {
		return nil, &staging.StateConflictError{ActionID: id, Expected: from, Actual: action.State}
	}

	action.State = to
	action.Version++
	action.LastError = lastError
	m.actions[id] = action
	return &action, nil
}

// Delete removes the action. Deleting a missing id is a no-op.
func (m *MemoryPending) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actions, id)
	delete(m.seq, id)
	return nil
}

// LatestDraft returns the newest draft for the conversation. Equal creation
// timestamps are broken by insertion order, so the result never depends on
// map iteration order.
func (m *MemoryPending) LatestDraft(_ context.Context, conversationID string) (*staging.PendingAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *staging.PendingAction
	var latestSeq uint64
	for id := range m.actions {
		action := m.actions[id]
		if action.ConversationID != conversationID || action.State != staging.StateDraft {
			continue
		}
		seq := m.seq[id]
		if latest == nil || action.CreatedAt.After(latest.CreatedAt) ||
			(action.CreatedAt.Equal(latest.CreatedAt) && seq > latestSeq) {
			latest = &action
			latestSeq = seq
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// =============================================================================
// MEMORY RECORD STORE - Seedable reference data plus committed records
// =============================================================================

// similarNameDistance is the edit-distance threshold below which two names
// count as colliding for duplicate-creation refusal.
const similarNameDistance = 2

// MemoryRecords backs the pipeline and the executor in tests and demos.
// Reference data is seeded through the Add* helpers. CreateErr, when set,
// makes every Create* call fail with it, simulating a downstream rejection.
type MemoryRecords struct {
	mu       sync.RWMutex
	clients  map[string][]match.Entity
	cats     map[string][]match.Entity
	projects map[string][]projectRow
	taxRates map[string][]staging.TaxRate

	Incomes  []staging.IncomeRecord
	Expenses []staging.ExpenseRecord
	Invoices []staging.InvoiceRecord
	Projects []staging.ProjectRecord
	Clients  []staging.ClientRecord

	CreateErr error
}

type projectRow struct {
	entity   match.Entity
	clientID string
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		clients:  make(map[string][]match.Entity),
		cats:     make(map[string][]match.Entity),
		projects: make(map[string][]projectRow),
		taxRates: make(map[string][]staging.TaxRate),
	}
}

// -----------------------------------------------------------------------------
// Seed helpers
// -----------------------------------------------------------------------------

func (m *MemoryRecords) AddClient(userID string, e match.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[userID] = append(m.clients[userID], e)
}

func (m *MemoryRecords) AddCategory(userID string, e match.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cats[userID] = append(m.cats[userID], e)
}

func (m *MemoryRecords) AddProject(userID, clientID string, e match.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[userID] = append(m.projects[userID], projectRow{entity: e, clientID: clientID})
}

func (m *MemoryRecords) AddTaxRate(userID string, tr staging.TaxRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taxRates[userID] = append(m.taxRates[userID], tr)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *MemoryRecords) ListClients(_ context.Context, userID string) ([]match.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]match.Entity(nil), m.clients[userID]...), nil
}

func (m *MemoryRecords) ListCategories(_ context.Context, userID string) ([]match.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]match.Entity(nil), m.cats[userID]...), nil
}

func (m *MemoryRecords) ListProjects(_ context.Context, userID, clientID string) ([]match.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []match.Entity
	for _, row := range m.projects[userID] {
		if row.clientID == clientID {
			out = append(out, row.entity)
		}
	}
	return out, nil
}

func (m *MemoryRecords) ListTaxRates(_ context.Context, userID string) ([]staging.TaxRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]staging.TaxRate(nil), m.taxRates[userID]...), nil
}

func (m *MemoryRecords) SimilarNames(_ context.Context, userID string, kind staging.EntityKind, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(name))
	var out []string
	for _, existing := range m.namesLocked(userID, kind) {
		candidate := strings.ToLower(existing)
		if candidate == query || levenshtein.ComputeDistance(candidate, query) <= similarNameDistance {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (m *MemoryRecords) namesLocked(userID string, kind staging.EntityKind) []string {
	var out []string
	switch kind {
	case staging.KindClient:
		for _, e := range m.clients[userID] {
			out = append(out, e.PrimaryName)
		}
	case staging.KindCategory:
		for _, e := range m.cats[userID] {
			out = append(out, e.PrimaryName)
		}
	case staging.KindProject:
		for _, row := range m.projects[userID] {
			out = append(out, row.entity.PrimaryName)
		}
	case staging.KindTaxRate:
		for _, tr := range m.taxRates[userID] {
			out = append(out, tr.Name)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Creates
// -----------------------------------------------------------------------------

func (m *MemoryRecords) CreateIncome(_ context.Context, rec staging.IncomeRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Incomes = append(m.Incomes, rec)
	return uuid.NewString(), nil
}

func (m *MemoryRecords) CreateExpense(_ context.Context, rec staging.ExpenseRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Expenses = append(m.Expenses, rec)
	return uuid.NewString(), nil
}

func (m *MemoryRecords) CreateInvoice(_ context.Context, rec staging.InvoiceRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Invoices = append(m.Invoices, rec)
	return uuid.NewString(), nil
}

func (m *MemoryRecords) CreateProject(_ context.Context, rec staging.ProjectRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Projects = append(m.Projects, rec)

	id := uuid.NewString()
	// Committed projects become resolvable references right away.
	m.projects[rec.UserID] = append(m.projects[rec.UserID], projectRow{
		entity:   match.Entity{ID: id, PrimaryName: rec.Name},
		clientID: rec.ClientID,
	})
	return id, nil
}

func (m *MemoryRecords) CreateClient(_ context.Context, rec staging.ClientRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Clients = append(m.Clients, rec)

	id := uuid.NewString()
	m.clients[rec.UserID] = append(m.clients[rec.UserID], match.Entity{ID: id, PrimaryName: rec.Name})
	return id, nil
}

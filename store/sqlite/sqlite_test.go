package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledgerflow/currency"
	"github.com/warp/ledgerflow/staging"
)

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stagedIncome(id string) *staging.PendingAction {
	payload := staging.IncomePayload{
		Description: "Retainer",
		Amount:      decimal.NewFromInt(500),
		Currency:    "EUR",
	}
	return &staging.PendingAction{
		ID:             id,
		ConversationID: "conv-1",
		UserID:         "u1",
		Type:           staging.ActionIncome,
		Payload:        payload,
		State:          staging.StateDraft,
		Version:        1,
		CreatedAt:      mustParse("2025-11-12T10:00:00Z"),
	}
}

func TestPendingActions_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, stagedIncome("a-1")))

	got, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, staging.StateDraft, got.State)
	assert.Equal(t, staging.ActionIncome, got.Type)

	payload := got.Payload.(staging.IncomePayload)
	assert.Equal(t, "Retainer", payload.Description)
	assert.True(t, payload.Amount.Equal(decimal.NewFromInt(500)))
}

func TestPendingActions_TransitionIsConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, stagedIncome("a-1")))

	confirmed, err := s.Transition(ctx, "a-1", staging.StateDraft, staging.StateConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, staging.StateConfirmed, confirmed.State)
	assert.Equal(t, 2, confirmed.Version)

	// The same transition again loses the conditional update.
	_, err = s.Transition(ctx, "a-1", staging.StateDraft, staging.StateConfirmed, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, staging.ErrNotDraft)

	var conflict *staging.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, staging.StateConfirmed, conflict.Actual)
}

func TestPendingActions_TransitionMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Transition(context.Background(), "missing", staging.StateDraft, staging.StateConfirmed, "")
	assert.ErrorIs(t, err, staging.ErrActionNotFound)
}

func TestPendingActions_ExecutedSetsResolvedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, stagedIncome("a-1")))
	_, err := s.Transition(ctx, "a-1", staging.StateDraft, staging.StateConfirmed, "")
	require.NoError(t, err)

	executed, err := s.Transition(ctx, "a-1", staging.StateConfirmed, staging.StateExecuted, "")
	require.NoError(t, err)
	require.NotNil(t, executed.ResolvedAt)
}

func TestPendingActions_DeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, stagedIncome("a-1")))
	require.NoError(t, s.Delete(ctx, "a-1"))
	require.NoError(t, s.Delete(ctx, "a-1"))

	_, err := s.Get(ctx, "a-1")
	assert.ErrorIs(t, err, staging.ErrActionNotFound)
}

func TestPendingActions_LatestDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := stagedIncome("a-1")
	newer := stagedIncome("a-2")
	newer.CreatedAt = older.CreatedAt.Add(time.Second)
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))

	latest, err := s.LatestDraft(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "a-2", latest.ID)

	_, err = s.Transition(ctx, "a-2", staging.StateDraft, staging.StateConfirmed, "")
	require.NoError(t, err)

	latest, err = s.LatestDraft(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "a-1", latest.ID)

	latest, err = s.LatestDraft(ctx, "conv-other")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestPendingActions_LatestDraftTieBreaksByInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Identical created_at stamps; insertion order decides.
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, s.Create(ctx, stagedIncome(id)))
	}

	latest, err := s.LatestDraft(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "a-3", latest.ID)
}

func TestRecords_EntitiesAndSimilarNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clientID, err := s.CreateClient(ctx, staging.ClientRecord{
		UserID: "u1", Name: "Acme Corp", Currency: "EUR",
	})
	require.NoError(t, err)

	_, err = s.CreateCategory(ctx, "u1", "Consulting")
	require.NoError(t, err)
	_, err = s.CreateTaxRate(ctx, "u1", "VAT", decimal.NewFromInt(21))
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, staging.ProjectRecord{
		UserID: "u1", ClientID: clientID, Name: "Website Redesign",
		Budget: currency.NewMoney(decimal.NewFromInt(5000), "EUR", decimal.New(1, 0)),
	})
	require.NoError(t, err)

	clients, err := s.ListClients(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme Corp", clients[0].PrimaryName)

	projects, err := s.ListProjects(ctx, "u1", clientID)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	rates, err := s.ListTaxRates(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].Percent.Equal(decimal.NewFromInt(21)))

	// Near-duplicate client names are reported for creation refusal.
	names, err := s.SimilarNames(ctx, "u1", staging.KindClient, "acme korp")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp"}, names)

	names, err = s.SimilarNames(ctx, "u1", staging.KindClient, "Initech")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRecords_InvoiceCommitWithLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	one := decimal.New(1, 0)
	id, err := s.CreateInvoice(ctx, staging.InvoiceRecord{
		UserID:    "u1",
		ClientID:  "c-1",
		IssueDate: mustParse("2025-11-12T00:00:00Z"),
		Lines: []staging.InvoiceRecordLine{
			{Description: "Design", Quantity: decimal.NewFromInt(10), Rate: decimal.NewFromInt(80), Amount: decimal.NewFromInt(800)},
			{Description: "Build", Quantity: decimal.NewFromInt(5), Rate: decimal.NewFromInt(40), Amount: decimal.NewFromInt(200)},
		},
		Subtotal: currency.NewMoney(decimal.NewFromInt(1000), "EUR", one),
		Tax:      currency.NewMoney(decimal.NewFromInt(100), "EUR", one),
		Total:    currency.NewMoney(decimal.NewFromInt(1100), "EUR", one),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// The status column is born 'draft' regardless of anything staged.
	var status string
	var lineCount int
	require.NoError(t, s.db.QueryRow(`SELECT status FROM invoices WHERE id = ?`, id).Scan(&status))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM invoice_lines WHERE invoice_id = ?`, id).Scan(&lineCount))
	assert.Equal(t, "draft", status)
	assert.Equal(t, 2, lineCount)
}

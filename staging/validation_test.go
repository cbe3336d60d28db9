package staging_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledgerflow/match"
	"github.com/warp/ledgerflow/staging"
	"github.com/warp/ledgerflow/staging/store"
)

func seededRecords() *store.MemoryRecords {
	records := store.NewMemoryRecords()
	records.AddClient("u1", match.Entity{ID: "c-acme", PrimaryName: "Acme Corp"})
	records.AddClient("u1", match.Entity{ID: "c-globex", PrimaryName: "Globex"})
	records.AddCategory("u1", match.Entity{ID: "cat-cons", PrimaryName: "Consulting"})
	records.AddProject("u1", "c-acme", match.Entity{ID: "p-site", PrimaryName: "Website Redesign"})
	records.AddTaxRate("u1", staging.TaxRate{ID: "t-vat", Name: "VAT", Percent: decimal.NewFromFloat(21)})
	return records
}

func newPipeline(records staging.RecordStore) *staging.Pipeline {
	return staging.NewPipeline(records, staging.PipelineConfig{
		BaseCurrency:      "EUR",
		EnabledCurrencies: []string{"USD"},
	})
}

func TestValidate_IncomeResolvesEverything(t *testing.T) {
	p := newPipeline(seededRecords())

	out, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Description:    "April retainer",
		Amount:         decimal.NewFromInt(1500),
		Currency:       "USD",
		CategoryRef:    "consulting", // exact, case-insensitive
		ClientRef:      "Acme Corp",
		ProjectRef:     "website redesign",
		TaxRatePercent: decimal.NewFromFloat(21),
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	income := out.(staging.IncomePayload)
	assert.Equal(t, "cat-cons", income.CategoryID)
	assert.Equal(t, "c-acme", income.ClientID)
	assert.Equal(t, "p-site", income.ProjectID)
	assert.Equal(t, "t-vat", income.TaxRateID)
}

func TestValidate_FuzzyHitIsSuggestedNeverPicked(t *testing.T) {
	p := newPipeline(seededRecords())

	// A typo'd project reference is close enough to suggest, but resolution
	// never auto-picks a fuzzy hit.
	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:     decimal.NewFromInt(100),
		Currency:   "EUR",
		ClientRef:  "Acme Corp",
		ProjectRef: "webiste redesign",
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "could be: Website Redesign")
}

func TestValidate_CurrencyNotEnabled(t *testing.T) {
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:   decimal.NewFromInt(100),
		Currency: "JPY",
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "JPY is not enabled")
	assert.Contains(t, res.Errors[0], "EUR")
}

func TestValidate_AccumulatesAcrossFields(t *testing.T) {
	// GIVEN a draft with three independent problems
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:         decimal.NewFromInt(-5),
		Currency:       "CHF",
		CategoryRef:    "marketing",
		TaxRatePercent: decimal.NewFromFloat(19),
	})
	require.NoError(t, err)

	// THEN one run surfaces all of them
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 4)
}

func TestValidate_ProjectStagedOnClient(t *testing.T) {
	p := newPipeline(seededRecords())

	// Client reference fails to resolve: the project check is skipped, not
	// reported as a second failure.
	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:     decimal.NewFromInt(100),
		Currency:   "EUR",
		ClientRef:  "initech",
		ProjectRef: "website redesign",
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], `client "initech" was not found`)
}

func TestValidate_ProjectWithoutClientRejected(t *testing.T) {
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:     decimal.NewFromInt(100),
		Currency:   "EUR",
		ProjectRef: "website redesign",
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "a project must be linked to a client")
}

func TestValidate_AmbiguousClientListsCandidates(t *testing.T) {
	records := seededRecords()
	records.AddClient("u1", match.Entity{ID: "c-acme2", PrimaryName: "Acme Labs"})
	p := newPipeline(records)

	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:    decimal.NewFromInt(100),
		Currency:  "EUR",
		ClientRef: "acme",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "ambiguous")
	assert.Contains(t, res.Errors[0], "Acme Corp")
	assert.Contains(t, res.Errors[0], "Acme Labs")
}

func TestValidate_TaxRateTolerance(t *testing.T) {
	p := newPipeline(seededRecords())

	// WHEN the requested rate is within 0.01 of a configured rate
	out, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:         decimal.NewFromInt(100),
		Currency:       "EUR",
		TaxRatePercent: decimal.NewFromFloat(21.005),
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Equal(t, "t-vat", out.(staging.IncomePayload).TaxRateID)

	// WHEN it is outside the tolerance
	_, res, err = p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:         decimal.NewFromInt(100),
		Currency:       "EUR",
		TaxRatePercent: decimal.NewFromFloat(21.5),
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "21.5% is not configured")
}

func TestValidate_NegativeTaxRateRejected(t *testing.T) {
	p := newPipeline(seededRecords())

	// A negative rate must never slip past the numeric match and later turn
	// into a negative committed tax amount.
	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:         decimal.NewFromInt(1000),
		Currency:       "EUR",
		TaxRatePercent: decimal.NewFromInt(-10),
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "-10% is invalid")

	// Same guard on invoices.
	_, res, err = p.Validate(context.Background(), "u1", staging.InvoicePayload{
		Currency:       "EUR",
		ClientRef:      "Acme Corp",
		TaxRatePercent: decimal.NewFromInt(-21),
		Lines: []staging.InvoiceLine{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "-21% is invalid")
}

func TestValidate_DuplicateClientNameRefused(t *testing.T) {
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.ClientPayload{
		Name: "Acme Korp", // near-collision with Acme Corp
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "Acme Corp")
}

func TestValidate_MissingFieldsAreAdvisory(t *testing.T) {
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.IncomePayload{
		Amount:   decimal.NewFromInt(100),
		Currency: "EUR",
	})
	require.NoError(t, err)

	// Gaps are reported but the draft stays valid.
	assert.True(t, res.Valid)
	assert.ElementsMatch(t, []string{"description", "category", "client", "project", "reference_number"}, res.MissingFields)
}

func TestValidate_InvoiceRequiresClientAndLines(t *testing.T) {
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.InvoicePayload{Currency: "EUR"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "an invoice requires a client")
	assert.Contains(t, res.Errors, "an invoice requires at least one line item")
}

func TestValidate_InvoiceLinePositivity(t *testing.T) {
	p := newPipeline(seededRecords())

	_, res, err := p.Validate(context.Background(), "u1", staging.InvoicePayload{
		Currency:  "EUR",
		ClientRef: "globex",
		Lines: []staging.InvoiceLine{
			{Description: "Design", Quantity: decimal.NewFromInt(10), Rate: decimal.NewFromInt(80)},
			{Description: "Rework", Quantity: decimal.Zero, Rate: decimal.NewFromInt(80)},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "line 2")
}

/*
validation.go - Staged multi-field validation of draft payloads

PURPOSE:
  Runs every check a draft needs before it may become a pending action, in
  a FIXED order, accumulating problems instead of stopping at the first:

    1. Currency enablement (a non-base currency must be in the enabled set)
    2. Independent references (category, tax rate, client) each resolved
       on its own; every failure is collected so one run surfaces them all
    3. Project resolution, STAGED on client resolution: a project reference
       is skipped while its client reference is unresolved, and rejected
       outright when no client was supplied at all
    4. Missing optional-but-recommended fields, advisory only

  The order is not reorderable: projects are scoped to clients, so step 3
  depends on step 2's client outcome.

TAX RATES:
  Every supplied non-zero rate is matched numerically against the
  configured named rates with a 0.01 tolerance. Negative rates are
  rejected outright. No match means "not configured, offer to create",
  never a fuzzy string guess.

OUTPUT:
  Validate returns the payload with resolved entity ids filled in, plus the
  ValidationResult. A validation failure is a normal outcome; the error
  return fires only for record-store I/O failures.
*/
package staging

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/ledgerflow/match"
)

// =============================================================================
// PIPELINE
// =============================================================================

// PipelineConfig carries the per-user currency settings.
type PipelineConfig struct {
	BaseCurrency      string
	EnabledCurrencies []string
}

// Pipeline validates draft payloads against the record store. Safe for
// concurrent use.
type Pipeline struct {
	records  RecordStore
	base     string
	enabled  map[string]bool
	clients  *match.Resolver
	category *match.Resolver
	projects *match.Resolver
	taxTol   decimal.Decimal
}

func NewPipeline(records RecordStore, cfg PipelineConfig) *Pipeline {
	enabled := make(map[string]bool, len(cfg.EnabledCurrencies)+1)
	enabled[cfg.BaseCurrency] = true
	for _, c := range cfg.EnabledCurrencies {
		enabled[c] = true
	}
	return &Pipeline{
		records:  records,
		base:     cfg.BaseCurrency,
		enabled:  enabled,
		clients:  match.NewResolver(),
		category: match.NewResolver(),
		// Project names carry the most lexical variation; tolerate typos.
		projects: match.NewLenientResolver(),
		taxTol:   decimal.NewFromFloat(0.01),
	}
}

// Validate runs the staged checks for the payload's action type and returns
// the payload with resolved ids filled in.
func (p *Pipeline) Validate(ctx context.Context, userID string, payload Payload) (Payload, ValidationResult, error) {
	res := ValidationResult{Valid: true}

	switch pl := payload.(type) {
	case IncomePayload:
		out, err := p.validateIncome(ctx, userID, pl, &res)
		return out, res, err
	case ExpensePayload:
		out, err := p.validateExpense(ctx, userID, pl, &res)
		return out, res, err
	case InvoicePayload:
		out, err := p.validateInvoice(ctx, userID, pl, &res)
		return out, res, err
	case ProjectPayload:
		out, err := p.validateProject(ctx, userID, pl, &res)
		return out, res, err
	case ClientPayload:
		out, err := p.validateClient(ctx, userID, pl, &res)
		return out, res, err
	default:
		return payload, res, fmt.Errorf("%w: %q", ErrUnsupportedActionType, payload.ActionType())
	}
}

// =============================================================================
// PER-TYPE VALIDATION
// =============================================================================

func (p *Pipeline) validateIncome(ctx context.Context, userID string, pl IncomePayload, res *ValidationResult) (IncomePayload, error) {
	p.checkCurrency(pl.Currency, res)
	if !pl.Amount.IsPositive() {
		res.addError("amount must be greater than zero")
	}

	// Independent references, all accumulated.
	if pl.CategoryRef != "" {
		categories, err := p.records.ListCategories(ctx, userID)
		if err != nil {
			return pl, err
		}
		pl.CategoryID = p.resolveRef(res, p.category, KindCategory, categories, pl.CategoryRef)
	}
	if !pl.TaxRatePercent.IsZero() {
		id, err := p.matchTaxRate(ctx, userID, pl.TaxRatePercent, res)
		if err != nil {
			return pl, err
		}
		pl.TaxRateID = id
	}
	clientResolved := true
	if pl.ClientRef != "" {
		clients, err := p.records.ListClients(ctx, userID)
		if err != nil {
			return pl, err
		}
		pl.ClientID = p.resolveRef(res, p.clients, KindClient, clients, pl.ClientRef)
		clientResolved = pl.ClientID != ""
	}

	// Project resolution is staged on the client outcome.
	if pl.ProjectRef != "" {
		switch {
		case pl.ClientRef == "":
			res.addError("a project must be linked to a client; add a client reference first")
		case !clientResolved:
			// Skip: retried once the client reference is fixed.
		default:
			projects, err := p.records.ListProjects(ctx, userID, pl.ClientID)
			if err != nil {
				return pl, err
			}
			pl.ProjectID = p.resolveRef(res, p.projects, KindProject, projects, pl.ProjectRef)
		}
	}

	// Advisory gaps only; never block validity.
	if pl.Description == "" {
		res.addMissing("description")
	}
	if pl.CategoryRef == "" {
		res.addMissing("category")
	}
	if pl.ClientRef == "" {
		res.addMissing("client")
	}
	if pl.ProjectRef == "" {
		res.addMissing("project")
	}
	if pl.ReferenceNumber == "" {
		res.addMissing("reference_number")
	}
	return pl, nil
}

func (p *Pipeline) validateExpense(ctx context.Context, userID string, pl ExpensePayload, res *ValidationResult) (ExpensePayload, error) {
	p.checkCurrency(pl.Currency, res)
	if !pl.Amount.IsPositive() {
		res.addError("amount must be greater than zero")
	}
	if pl.CategoryRef != "" {
		categories, err := p.records.ListCategories(ctx, userID)
		if err != nil {
			return pl, err
		}
		pl.CategoryID = p.resolveRef(res, p.category, KindCategory, categories, pl.CategoryRef)
	}

	if pl.Description == "" {
		res.addMissing("description")
	}
	if pl.CategoryRef == "" {
		res.addMissing("category")
	}
	if pl.ReferenceNumber == "" {
		res.addMissing("reference_number")
	}
	return pl, nil
}

func (p *Pipeline) validateInvoice(ctx context.Context, userID string, pl InvoicePayload, res *ValidationResult) (InvoicePayload, error) {
	p.checkCurrency(pl.Currency, res)

	if pl.ClientRef == "" {
		res.addError("an invoice requires a client")
	} else {
		clients, err := p.records.ListClients(ctx, userID)
		if err != nil {
			return pl, err
		}
		pl.ClientID = p.resolveRef(res, p.clients, KindClient, clients, pl.ClientRef)
	}

	if len(pl.Lines) == 0 {
		res.addError("an invoice requires at least one line item")
	}
	for i, line := range pl.Lines {
		if !line.Quantity.IsPositive() || !line.Rate.IsPositive() {
			res.addError(fmt.Sprintf("line %d: quantity and rate must be greater than zero", i+1))
		}
	}

	if !pl.TaxRatePercent.IsZero() {
		id, err := p.matchTaxRate(ctx, userID, pl.TaxRatePercent, res)
		if err != nil {
			return pl, err
		}
		pl.TaxRateID = id
	}

	if pl.DueDate.IsZero() {
		res.addMissing("due_date")
	}
	return pl, nil
}

func (p *Pipeline) validateProject(ctx context.Context, userID string, pl ProjectPayload, res *ValidationResult) (ProjectPayload, error) {
	if pl.Currency != "" {
		p.checkCurrency(pl.Currency, res)
	}
	if pl.Name == "" {
		res.addError("a project requires a name")
	} else if err := p.checkDuplicateName(ctx, userID, KindProject, pl.Name, res); err != nil {
		return pl, err
	}

	if pl.ClientRef == "" {
		res.addError("a project must be linked to a client; add a client reference first")
	} else {
		clients, err := p.records.ListClients(ctx, userID)
		if err != nil {
			return pl, err
		}
		pl.ClientID = p.resolveRef(res, p.clients, KindClient, clients, pl.ClientRef)
	}

	if pl.Description == "" {
		res.addMissing("description")
	}
	return pl, nil
}

func (p *Pipeline) validateClient(ctx context.Context, userID string, pl ClientPayload, res *ValidationResult) (ClientPayload, error) {
	if pl.Currency != "" {
		p.checkCurrency(pl.Currency, res)
	}
	if pl.Name == "" {
		res.addError("a client requires a name")
	} else if err := p.checkDuplicateName(ctx, userID, KindClient, pl.Name, res); err != nil {
		return pl, err
	}

	if pl.Email == "" {
		res.addMissing("email")
	}
	return pl, nil
}

// =============================================================================
// FIELD CHECKS
// =============================================================================

func (p *Pipeline) checkCurrency(cur string, res *ValidationResult) {
	if cur == "" {
		res.addError("a currency is required")
		return
	}
	if !p.enabled[cur] {
		res.addError(fmt.Sprintf("currency %s is not enabled for this account (base currency %s)", cur, p.base))
	}
}

// resolveRef resolves one reference and formats the outcome. Returns the
// resolved id, or "" with an error appended for ambiguous/not-found.
func (p *Pipeline) resolveRef(res *ValidationResult, resolver *match.Resolver, kind EntityKind, candidates []match.Entity, ref string) string {
	r := resolver.Resolve(candidates, ref)
	switch {
	case r.IsUnique():
		return r.Exact.ID
	case r.IsAmbiguous():
		res.addError(fmt.Sprintf("%s %q is ambiguous, could be: %s",
			kind, ref, strings.Join(r.CandidateNames(), ", ")))
	default:
		res.addError(fmt.Sprintf("%s %q was not found; it can be created first", kind, ref))
	}
	return ""
}

// matchTaxRate matches a supplied non-zero percent against the configured
// named rates. Negative percents can never match a configured rate and are
// rejected before the lookup.
func (p *Pipeline) matchTaxRate(ctx context.Context, userID string, requested decimal.Decimal, res *ValidationResult) (string, error) {
	if requested.IsNegative() {
		res.addError(fmt.Sprintf("tax rate %s%% is invalid; a tax rate cannot be negative", requested.String()))
		return "", nil
	}
	rates, err := p.records.ListTaxRates(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, rate := range rates {
		if rate.Percent.Sub(requested).Abs().LessThanOrEqual(p.taxTol) {
			return rate.ID, nil
		}
	}
	res.addError(fmt.Sprintf("tax rate %s%% is not configured; it can be created first", requested.String()))
	return "", nil
}

func (p *Pipeline) checkDuplicateName(ctx context.Context, userID string, kind EntityKind, name string, res *ValidationResult) error {
	existing, err := p.records.SimilarNames(ctx, userID, kind, name)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		res.addError((&DuplicateNameError{Kind: kind, Name: name, Existing: existing}).Error())
	}
	return nil
}

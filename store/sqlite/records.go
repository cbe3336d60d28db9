/*
records.go - Named entities and committed financial records

PURPOSE:
  The staging.RecordStore side of the SQLite store: lists the entities
  resolution matches against, answers near-duplicate name checks, and
  commits the records the executor produces. Creation here is insert-only;
  record editing belongs to other surfaces.

NAME COLLISIONS:
  SimilarNames folds case and applies a small edit-distance bound in Go
  rather than SQL. Entity lists per user are small, so pulling the names
  and comparing in-process beats wiring a custom SQLite function.
*/
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/ledgerflow/match"
	"github.com/warp/ledgerflow/staging"
)

// similarNameDistance is the edit-distance threshold below which two names
// count as colliding for duplicate-creation refusal.
const similarNameDistance = 2

// =============================================================================
// ENTITY LISTS (resolution candidates)
// =============================================================================

func (s *Store) ListClients(ctx context.Context, userID string) ([]match.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT id, name, company_name FROM clients WHERE user_id = ? ORDER BY created_at
	`, userID)
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]match.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT id, name, '' FROM categories WHERE user_id = ? ORDER BY created_at
	`, userID)
}

func (s *Store) ListProjects(ctx context.Context, userID, clientID string) ([]match.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT id, name, '' FROM projects WHERE user_id = ? AND client_id = ? ORDER BY created_at
	`, userID, clientID)
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]match.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []match.Entity
	for rows.Next() {
		var e match.Entity
		if err := rows.Scan(&e.ID, &e.PrimaryName, &e.SecondaryName); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListTaxRates(ctx context.Context, userID string) ([]staging.TaxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, percent FROM tax_rates WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax rates: %w", err)
	}
	defer rows.Close()

	var out []staging.TaxRate
	for rows.Next() {
		var (
			tr      staging.TaxRate
			percent string
		)
		if err := rows.Scan(&tr.ID, &tr.Name, &percent); err != nil {
			return nil, fmt.Errorf("failed to scan tax rate: %w", err)
		}
		if tr.Percent, err = decimal.NewFromString(percent); err != nil {
			return nil, fmt.Errorf("failed to parse tax rate percent: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SimilarNames returns existing names colliding exactly or nearly with name.
func (s *Store) SimilarNames(ctx context.Context, userID string, kind staging.EntityKind, name string) ([]string, error) {
	var query string
	switch kind {
	case staging.KindClient:
		query = `SELECT name FROM clients WHERE user_id = ?`
	case staging.KindCategory:
		query = `SELECT name FROM categories WHERE user_id = ?`
	case staging.KindProject:
		query = `SELECT name FROM projects WHERE user_id = ?`
	case staging.KindTaxRate:
		query = `SELECT name FROM tax_rates WHERE user_id = ?`
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()

	target := strings.ToLower(strings.TrimSpace(name))
	var out []string
	for rows.Next() {
		var existing string
		if err := rows.Scan(&existing); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		candidate := strings.ToLower(existing)
		if candidate == target || levenshtein.ComputeDistance(candidate, target) <= similarNameDistance {
			out = append(out, existing)
		}
	}
	return out, rows.Err()
}

// =============================================================================
// COMMITTED RECORD CREATION
// =============================================================================

func (s *Store) CreateIncome(ctx context.Context, rec staging.IncomeRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incomes
		(id, user_id, description, date, category_id, client_id, project_id, reference_number,
		 tax_rate_percent, native_amount, native_currency, exchange_rate, base_amount,
		 tax_native_amount, tax_base_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, rec.UserID, rec.Description, dateString(rec.Date),
		rec.CategoryID, rec.ClientID, rec.ProjectID, rec.ReferenceNumber,
		rec.TaxRatePercent.String(),
		rec.Amount.NativeAmount.String(), rec.Amount.NativeCurrency,
		rec.Amount.ExchangeRate.String(), rec.Amount.BaseAmount.String(),
		rec.TaxAmount.NativeAmount.String(), rec.TaxAmount.BaseAmount.String(),
		nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create income: %w", err)
	}
	return id, nil
}

func (s *Store) CreateExpense(ctx context.Context, rec staging.ExpenseRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses
		(id, user_id, description, date, category_id, reference_number,
		 native_amount, native_currency, exchange_rate, base_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, rec.UserID, rec.Description, dateString(rec.Date),
		rec.CategoryID, rec.ReferenceNumber,
		rec.Amount.NativeAmount.String(), rec.Amount.NativeCurrency,
		rec.Amount.ExchangeRate.String(), rec.Amount.BaseAmount.String(),
		nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create expense: %w", err)
	}
	return id, nil
}

// CreateInvoice commits the invoice and its lines in one transaction. The
// status column is left to its schema default.
func (s *Store) CreateInvoice(ctx context.Context, rec staging.InvoiceRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices
		(id, user_id, client_id, issue_date, due_date, notes, tax_rate_percent,
		 native_currency, exchange_rate, subtotal_native, subtotal_base,
		 tax_native, tax_base, total_native, total_base, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, rec.UserID, rec.ClientID, dateString(rec.IssueDate), nullDate(rec.DueDate),
		rec.Notes, rec.TaxRatePercent.String(),
		rec.Subtotal.NativeCurrency, rec.Subtotal.ExchangeRate.String(),
		rec.Subtotal.NativeAmount.String(), rec.Subtotal.BaseAmount.String(),
		rec.Tax.NativeAmount.String(), rec.Tax.BaseAmount.String(),
		rec.Total.NativeAmount.String(), rec.Total.BaseAmount.String(),
		nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}

	for i, line := range rec.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, position, description, quantity, rate, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			uuid.NewString(), id, i+1, line.Description,
			line.Quantity.String(), line.Rate.String(), line.Amount.String(),
		)
		if err != nil {
			return "", fmt.Errorf("failed to create invoice line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit invoice: %w", err)
	}
	return id, nil
}

func (s *Store) CreateProject(ctx context.Context, rec staging.ProjectRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects
		(id, user_id, client_id, name, description,
		 budget_native_amount, budget_native_currency, budget_exchange_rate, budget_base_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, rec.UserID, rec.ClientID, rec.Name, rec.Description,
		rec.Budget.NativeAmount.String(), rec.Budget.NativeCurrency,
		rec.Budget.ExchangeRate.String(), rec.Budget.BaseAmount.String(),
		nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create project: %w", err)
	}
	return id, nil
}

func (s *Store) CreateClient(ctx context.Context, rec staging.ClientRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, user_id, name, email, address, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		id, rec.UserID, rec.Name, rec.Email, rec.Address, rec.Currency, nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create client: %w", err)
	}
	return id, nil
}

// =============================================================================
// REFERENCE DATA CREATION (outside staging.RecordStore)
// =============================================================================

// CreateCategory adds a category the resolver can match against. Categories
// are not staged through pending actions, so creation is direct.
func (s *Store) CreateCategory(ctx context.Context, userID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
	`, id, userID, name, nowString())
	if err != nil {
		return "", fmt.Errorf("failed to create category: %w", err)
	}
	return id, nil
}

// CreateTaxRate adds a named tax rate for numeric matching.
func (s *Store) CreateTaxRate(ctx context.Context, userID, name string, percent decimal.Decimal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_rates (id, user_id, name, percent, created_at) VALUES (?, ?, ?, ?, ?)
	`, id, userID, name, percent.String(), nowString())
	if err != nil {
		return "", fmt.Errorf("failed to create tax rate: %w", err)
	}
	return id, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func dateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return dateString(t)
}

var _ staging.RecordStore = (*Store)(nil)
var _ staging.PendingActionStore = (*Store)(nil)

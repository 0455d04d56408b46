// Package repository implements the storage layer over PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/database"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// ExpenseFilter narrows Find/CountMatching queries. Zero values mean
// "no filter" for that field.
type ExpenseFilter struct {
	Category    string
	Subcategory string
	Currency    string
	Limit       int
}

// BreakdownRow is one line of a per-category spending breakdown.
type BreakdownRow struct {
	Category    string
	Subcategory string
	Currency    string
	Amount      decimal.Decimal
}

// CategoryUsage summarizes a tenant's spending per (category, currency).
type CategoryUsage struct {
	Category string
	Currency string
	Total    decimal.Decimal
	Count    int
}

// ExpenseRepository is the ledger store: durable expense facts scoped to a
// (chat, user) tenant. Every query filters by both ids; monetary totals must
// never mix tenants.
type ExpenseRepository struct {
	db database.PGXDB
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Record inserts a new expense and fills its id and created_at.
func (r *ExpenseRepository) Record(ctx context.Context, expense *models.Expense) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (chat_id, user_id, amount, currency, category, subcategory, note, spent_at, spent_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, expense.ChatID, expense.UserID, expense.Amount, expense.Currency,
		expense.Category, expense.Subcategory, expense.Note, expense.SpentAt, expense.SpentDay,
	).Scan(&expense.ID, &expense.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record expense: %w", err)
	}
	return nil
}

// Sum totals a tenant's spending over an inclusive day range, optionally
// narrowed to one category and currency.
func (r *ExpenseRepository) Sum(
	ctx context.Context,
	tenant models.Tenant,
	startDay, endDay time.Time,
	category, currency string,
) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE chat_id = $1 AND user_id = $2 AND spent_day >= $3 AND spent_day <= $4`
	args := []any{tenant.ChatID, tenant.UserID, startDay, endDay}

	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if currency != "" {
		args = append(args, currency)
		query += fmt.Sprintf(" AND currency = $%d", len(args))
	}

	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}
	return total, nil
}

// Breakdown returns per-(category, subcategory, currency) totals over an
// inclusive day range, largest first.
func (r *ExpenseRepository) Breakdown(
	ctx context.Context,
	tenant models.Tenant,
	startDay, endDay time.Time,
) ([]BreakdownRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, subcategory, currency, SUM(amount) AS total
		FROM expenses
		WHERE chat_id = $1 AND user_id = $2 AND spent_day >= $3 AND spent_day <= $4
		GROUP BY category, subcategory, currency
		ORDER BY total DESC
	`, tenant.ChatID, tenant.UserID, startDay, endDay)
	if err != nil {
		return nil, fmt.Errorf("failed to query breakdown: %w", err)
	}
	defer rows.Close()

	var result []BreakdownRow
	for rows.Next() {
		var row BreakdownRow
		if err := rows.Scan(&row.Category, &row.Subcategory, &row.Currency, &row.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breakdown: %w", err)
	}
	return result, nil
}

// Find returns a tenant's expenses in an inclusive day range, most recent
// first, narrowed by the filter.
func (r *ExpenseRepository) Find(
	ctx context.Context,
	tenant models.Tenant,
	startDay, endDay time.Time,
	filter ExpenseFilter,
) ([]models.Expense, error) {
	query, args := buildFindQuery(tenant, startDay, endDay, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	return scanExpenses(rows)
}

// CountAndSumMatching counts the expenses a filter-mode delete would remove
// and totals their amounts, without removing anything. Used by the
// confirmation pre-check.
func (r *ExpenseRepository) CountAndSumMatching(
	ctx context.Context,
	tenant models.Tenant,
	startDay, endDay time.Time,
	filter ExpenseFilter,
) (int, decimal.Decimal, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM expenses
		WHERE chat_id = $1 AND user_id = $2 AND spent_day >= $3 AND spent_day <= $4`
	args := []any{tenant.ChatID, tenant.UserID, startDay, endDay}
	query, args = appendFilter(query, args, filter)

	var count int
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count, &total); err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to count matching expenses: %w", err)
	}
	return count, total, nil
}

// DeleteMatching removes every expense a filter matches and returns the
// count. Callers must have passed the confirmation detour first.
func (r *ExpenseRepository) DeleteMatching(
	ctx context.Context,
	tenant models.Tenant,
	startDay, endDay time.Time,
	filter ExpenseFilter,
) (int, error) {
	query := `
		DELETE FROM expenses
		WHERE chat_id = $1 AND user_id = $2 AND spent_day >= $3 AND spent_day <= $4`
	args := []any{tenant.ChatID, tenant.UserID, startDay, endDay}
	query, args = appendFilter(query, args, filter)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matching expenses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Last returns the tenant's most recent expense across the full history,
// or nil when the ledger is empty.
func (r *ExpenseRepository) Last(ctx context.Context, tenant models.Tenant) (*models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, chat_id, user_id, amount, currency, category, subcategory, note, spent_at, spent_day, created_at
		FROM expenses
		WHERE chat_id = $1 AND user_id = $2
		ORDER BY spent_at DESC, id DESC
		LIMIT 1
	`, tenant.ChatID, tenant.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query last expense: %w", err)
	}
	defer rows.Close()

	expenses, err := scanExpenses(rows)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, nil
	}
	return &expenses[0], nil
}

// Delete removes the tenant's expenses among the given ids and returns how
// many rows were actually removed. Missing ids and ids owned by other
// tenants are silently ignored.
func (r *ExpenseRepository) Delete(ctx context.Context, tenant models.Tenant, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, `
		DELETE FROM expenses
		WHERE chat_id = $1 AND user_id = $2 AND id = ANY($3)
	`, tenant.ChatID, tenant.UserID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expenses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Categories returns the tenant's distinct (category, currency) pairs with
// totals, largest first.
func (r *ExpenseRepository) Categories(ctx context.Context, tenant models.Tenant) ([]CategoryUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, currency, SUM(amount) AS total, COUNT(*)
		FROM expenses
		WHERE chat_id = $1 AND user_id = $2
		GROUP BY category, currency
		ORDER BY total DESC
	`, tenant.ChatID, tenant.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var result []CategoryUsage
	for rows.Next() {
		var usage CategoryUsage
		if err := rows.Scan(&usage.Category, &usage.Currency, &usage.Total, &usage.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category usage: %w", err)
		}
		result = append(result, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return result, nil
}

func buildFindQuery(tenant models.Tenant, startDay, endDay time.Time, filter ExpenseFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, chat_id, user_id, amount, currency, category, subcategory, note, spent_at, spent_day, created_at
		FROM expenses
		WHERE chat_id = $1 AND user_id = $2 AND spent_day >= $3 AND spent_day <= $4`)
	args := []any{tenant.ChatID, tenant.UserID, startDay, endDay}

	query, args := appendFilter(sb.String(), args, filter)
	query += " ORDER BY spent_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func appendFilter(query string, args []any, filter ExpenseFilter) (string, []any) {
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Subcategory != "" {
		args = append(args, filter.Subcategory)
		query += fmt.Sprintf(" AND subcategory = $%d", len(args))
	}
	if filter.Currency != "" {
		args = append(args, filter.Currency)
		query += fmt.Sprintf(" AND currency = $%d", len(args))
	}
	return query, args
}

// scanExpenses is a helper to scan expense rows.
func scanExpenses(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
},
) ([]models.Expense, error) {
	var expenses []models.Expense
	for rows.Next() {
		var exp models.Expense
		if err := rows.Scan(
			&exp.ID, &exp.ChatID, &exp.UserID, &exp.Amount, &exp.Currency,
			&exp.Category, &exp.Subcategory, &exp.Note, &exp.SpentAt, &exp.SpentDay, &exp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

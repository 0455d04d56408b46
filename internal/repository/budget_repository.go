package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/bekzodm/hamyon-bot/internal/database"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// BudgetRepository stores base budget limits, one row per
// (chat, user, category, currency).
type BudgetRepository struct {
	db database.PGXDB
}

// NewBudgetRepository creates a new BudgetRepository.
func NewBudgetRepository(db database.PGXDB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// Upsert inserts or replaces the budget for its natural key. Setting a
// budget twice replaces, never duplicates.
func (r *BudgetRepository) Upsert(ctx context.Context, budget *models.BudgetBase) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO budgets (chat_id, user_id, category, currency, daily_limit, monthly_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id, user_id, category, currency) DO UPDATE SET
			daily_limit = EXCLUDED.daily_limit,
			monthly_limit = EXCLUDED.monthly_limit,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, budget.ChatID, budget.UserID, budget.Category, budget.Currency,
		budget.DailyLimit, budget.MonthlyLimit,
	).Scan(&budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

// Get returns the budget for the key, or nil when no budget is configured.
func (r *BudgetRepository) Get(
	ctx context.Context,
	tenant models.Tenant,
	category, currency string,
) (*models.BudgetBase, error) {
	var b models.BudgetBase
	err := r.db.QueryRow(ctx, `
		SELECT chat_id, user_id, category, currency, daily_limit, monthly_limit, created_at, updated_at
		FROM budgets
		WHERE chat_id = $1 AND user_id = $2 AND category = $3 AND currency = $4
	`, tenant.ChatID, tenant.UserID, category, currency,
	).Scan(&b.ChatID, &b.UserID, &b.Category, &b.Currency,
		&b.DailyLimit, &b.MonthlyLimit, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return &b, nil
}

// List returns all budgets configured by the tenant.
func (r *BudgetRepository) List(ctx context.Context, tenant models.Tenant) ([]models.BudgetBase, error) {
	rows, err := r.db.Query(ctx, `
		SELECT chat_id, user_id, category, currency, daily_limit, monthly_limit, created_at, updated_at
		FROM budgets
		WHERE chat_id = $1 AND user_id = $2
		ORDER BY category, currency
	`, tenant.ChatID, tenant.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []models.BudgetBase
	for rows.Next() {
		var b models.BudgetBase
		if err := rows.Scan(&b.ChatID, &b.UserID, &b.Category, &b.Currency,
			&b.DailyLimit, &b.MonthlyLimit, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

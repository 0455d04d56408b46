package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			amount NUMERIC(14, 2) NOT NULL,
			currency TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			spent_at TIMESTAMPTZ NOT NULL,
			spent_day DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expenses_tenant_day
			ON expenses(chat_id, user_id, spent_day)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_tenant_category
			ON expenses(chat_id, user_id, category, currency)`,

		`CREATE TABLE IF NOT EXISTS budgets (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			category TEXT NOT NULL,
			currency TEXT NOT NULL,
			daily_limit NUMERIC(14, 2),
			monthly_limit NUMERIC(14, 2),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (chat_id, user_id, category, currency)
		)`,

		`CREATE TABLE IF NOT EXISTS daily_overrides (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			category TEXT NOT NULL,
			currency TEXT NOT NULL,
			day DATE NOT NULL,
			limit_amount NUMERIC(14, 2) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (chat_id, user_id, category, currency, day)
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_states (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			turns JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS pending_actions (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, user_id)
		)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

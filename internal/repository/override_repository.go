package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"gitlab.com/bekzodm/hamyon-bot/internal/database"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// OverrideRepository stores the frozen effective daily limits. At most one
// row exists per (chat, user, category, currency, day) and the first write
// wins: a day's allowance is never recomputed once spending against it may
// have begun.
type OverrideRepository struct {
	db database.PGXDB
}

// NewOverrideRepository creates a new OverrideRepository.
func NewOverrideRepository(db database.PGXDB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Get returns the override for the exact key, or nil when none exists.
func (r *OverrideRepository) Get(
	ctx context.Context,
	tenant models.Tenant,
	category, currency string,
	day time.Time,
) (*models.DailyOverride, error) {
	var o models.DailyOverride
	err := r.db.QueryRow(ctx, `
		SELECT chat_id, user_id, category, currency, day, limit_amount, reason, created_at
		FROM daily_overrides
		WHERE chat_id = $1 AND user_id = $2 AND category = $3 AND currency = $4 AND day = $5
	`, tenant.ChatID, tenant.UserID, category, currency, day,
	).Scan(&o.ChatID, &o.UserID, &o.Category, &o.Currency, &o.Day, &o.Limit, &o.Reason, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return &o, nil
}

// Create inserts the override unless one already exists for the key.
// Returns true when this call inserted the row; concurrent writers race
// safely on the unique constraint and the loser observes false.
func (r *OverrideRepository) Create(ctx context.Context, o *models.DailyOverride) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO daily_overrides (chat_id, user_id, category, currency, day, limit_amount, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chat_id, user_id, category, currency, day) DO NOTHING
	`, o.ChatID, o.UserID, o.Category, o.Currency, o.Day, o.Limit, o.Reason)
	if err != nil {
		return false, fmt.Errorf("failed to create override: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

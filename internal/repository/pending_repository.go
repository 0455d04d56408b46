package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/bekzodm/hamyon-bot/internal/database"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// PendingRepository stores at most one pending destructive action per
// tenant. A new plan supersedes the previous one via upsert.
type PendingRepository struct {
	db database.PGXDB
}

// NewPendingRepository creates a new PendingRepository.
func NewPendingRepository(db database.PGXDB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Get returns the tenant's pending action, or nil when none exists.
func (r *PendingRepository) Get(ctx context.Context, tenant models.Tenant) (*models.PendingAction, error) {
	var p models.PendingAction
	err := r.db.QueryRow(ctx, `
		SELECT chat_id, user_id, payload, created_at
		FROM pending_actions
		WHERE chat_id = $1 AND user_id = $2
	`, tenant.ChatID, tenant.UserID).Scan(&p.ChatID, &p.UserID, &p.Payload, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending action: %w", err)
	}
	return &p, nil
}

// Set stores the pending action, replacing any prior one for the tenant.
func (r *PendingRepository) Set(ctx context.Context, p *models.PendingAction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pending_actions (chat_id, user_id, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id, user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = NOW()
	`, p.ChatID, p.UserID, p.Payload)
	if err != nil {
		return fmt.Errorf("failed to set pending action: %w", err)
	}
	return nil
}

// Clear removes the tenant's pending action if any.
func (r *PendingRepository) Clear(ctx context.Context, tenant models.Tenant) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM pending_actions WHERE chat_id = $1 AND user_id = $2
	`, tenant.ChatID, tenant.UserID)
	if err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}
	return nil
}

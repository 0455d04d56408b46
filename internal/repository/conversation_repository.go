package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/bekzodm/hamyon-bot/internal/database"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// ConversationRepository persists the per-tenant interpreter context:
// rolling summary plus the recent turn window, stored as JSONB.
type ConversationRepository struct {
	db database.PGXDB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db database.PGXDB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Get returns the tenant's conversation state, or an empty state when the
// tenant has no history yet.
func (r *ConversationRepository) Get(ctx context.Context, tenant models.Tenant) (*models.ConversationState, error) {
	state := &models.ConversationState{ChatID: tenant.ChatID, UserID: tenant.UserID}

	var turnsJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT summary, turns, updated_at
		FROM conversation_states
		WHERE chat_id = $1 AND user_id = $2
	`, tenant.ChatID, tenant.UserID).Scan(&state.Summary, &turnsJSON, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}

	if err := json.Unmarshal(turnsJSON, &state.Turns); err != nil {
		return nil, fmt.Errorf("failed to decode conversation turns: %w", err)
	}
	return state, nil
}

// Save upserts the tenant's conversation state.
func (r *ConversationRepository) Save(ctx context.Context, state *models.ConversationState) error {
	turnsJSON, err := json.Marshal(state.Turns)
	if err != nil {
		return fmt.Errorf("failed to encode conversation turns: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO conversation_states (chat_id, user_id, summary, turns, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (chat_id, user_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			turns = EXCLUDED.turns,
			updated_at = NOW()
	`, state.ChatID, state.UserID, state.Summary, turnsJSON)
	if err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

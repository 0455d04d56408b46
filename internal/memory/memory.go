// Package memory maintains the bounded per-tenant conversation context: a
// rolling summary plus a fixed window of recent turns.
package memory

import (
	"context"
	"fmt"

	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// Store persists conversation state.
type Store interface {
	Get(ctx context.Context, tenant models.Tenant) (*models.ConversationState, error)
	Save(ctx context.Context, state *models.ConversationState) error
}

// Memory bounds conversation growth: the turn window drops oldest entries
// and the summary is capped at a fixed number of characters.
type Memory struct {
	store      Store
	window     int
	summaryMax int
}

// New creates a Memory with the given window length and summary cap.
func New(store Store, window, summaryMax int) *Memory {
	return &Memory{store: store, window: window, summaryMax: summaryMax}
}

// Load returns the tenant's conversation state, empty when none exists.
func (m *Memory) Load(ctx context.Context, tenant models.Tenant) (*models.ConversationState, error) {
	state, err := m.store.Get(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return state, nil
}

// Persist appends the completed turn pair, applies the bounds and saves.
func (m *Memory) Persist(
	ctx context.Context,
	tenant models.Tenant,
	state *models.ConversationState,
	userMsg, reply, summary string,
) error {
	if state == nil {
		state = &models.ConversationState{ChatID: tenant.ChatID, UserID: tenant.UserID}
	}

	state.Turns = append(state.Turns,
		models.Turn{Role: models.RoleUser, Content: userMsg},
		models.Turn{Role: models.RoleAssistant, Content: reply},
	)
	state.Turns = TrimWindow(state.Turns, m.window)
	state.Summary = TruncateSummary(summary, m.summaryMax)

	if err := m.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to persist conversation state: %w", err)
	}
	return nil
}

// TrimWindow keeps the most recent window turns, dropping the oldest.
func TrimWindow(turns []models.Turn, window int) []models.Turn {
	if window <= 0 || len(turns) <= window {
		return turns
	}
	return turns[len(turns)-window:]
}

// TruncateSummary caps the summary length, cutting on a rune boundary.
func TruncateSummary(summary string, maxChars int) string {
	if maxChars <= 0 {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= maxChars {
		return summary
	}
	return string(runes[:maxChars])
}

package bot

import (
	"context"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/executor"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// pendingReminder is sent when a tenant with an open confirmation sends
// anything other than a yes/no answer.
const pendingReminder = "You still have a deletion waiting for confirmation. Reply \"yes\" to proceed or \"no\" to cancel."

// handleTextCore runs the full pipeline for one addressed text message:
// memory load, confirmation detour, planning, execution and reply. Exactly
// one message is sent back per inbound message.
func (b *Bot) handleTextCore(ctx context.Context, tg TelegramAPI, msg *tgmodels.Message, text string) {
	tenant := models.Tenant{ChatID: msg.Chat.ID, UserID: msg.From.ID}

	logger.Log.Info().
		Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
		Str("text", logger.SanitizeUtterance(text)).
		Msg("Handling message")

	state, err := b.memory.Load(ctx, tenant)
	if err != nil {
		// Degraded mode: the pipeline still works without history.
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to load conversation state")
		state = nil
	}

	if b.handlePendingConfirmation(ctx, tg, tenant, msg, text, state) {
		return
	}

	plan := b.planner.Plan(ctx, tenant, text, state)
	if plan.IsClarify() {
		b.reply(ctx, tg, msg.Chat.ID, plan.Clarify)
		b.persist(ctx, tenant, state, text, plan.Clarify, previousSummary(state))
		return
	}

	results, err := b.executor.Execute(ctx, tenant, plan.Actions)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Execution failed")
		b.reply(ctx, tg, msg.Chat.ID, "Something went wrong on my side, please try again.")
		return
	}

	reply, summary := b.responder.Respond(ctx, tenant, text, results, state)
	b.reply(ctx, tg, msg.Chat.ID, reply)
	b.persist(ctx, tenant, state, text, reply, summary)

	b.sendStatsChart(ctx, tg, msg.Chat.ID, results)
}

// handlePendingConfirmation intercepts the message when a destructive action
// awaits a yes/no answer. Returns true when the message was consumed.
func (b *Bot) handlePendingConfirmation(
	ctx context.Context,
	tg TelegramAPI,
	tenant models.Tenant,
	msg *tgmodels.Message,
	text string,
	state *models.ConversationState,
) bool {
	pending, err := b.executor.PendingFor(ctx, tenant)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to read pending action")
		return false
	}
	if pending == nil {
		return false
	}

	confirmed, recognized := ParseConfirmation(text)
	if !recognized {
		b.reply(ctx, tg, msg.Chat.ID, pendingReminder)
		return true
	}

	result, err := b.executor.ResolvePending(ctx, tenant, confirmed)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to resolve pending action")
		b.reply(ctx, tg, msg.Chat.ID, "Something went wrong on my side, please try again.")
		return true
	}
	if result == nil {
		// Expired between the lookup and the resolution.
		return false
	}

	reply, summary := b.responder.Respond(ctx, tenant, text, []executor.Result{*result}, state)
	b.reply(ctx, tg, msg.Chat.ID, reply)
	b.persist(ctx, tenant, state, text, reply, summary)
	return true
}

// reply sends a plain text message; send failures are logged, never
// propagated to the user.
func (b *Bot) reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		logger.Log.Error().Err(err).
			Int64("chat_id", chatID).
			Msg("Failed to send reply")
	}
}

func (b *Bot) persist(
	ctx context.Context,
	tenant models.Tenant,
	state *models.ConversationState,
	userMsg, reply, summary string,
) {
	if err := b.memory.Persist(ctx, tenant, state, userMsg, reply, summary); err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to persist conversation state")
	}
}

func previousSummary(state *models.ConversationState) string {
	if state == nil {
		return ""
	}
	return state.Summary
}

// Package bot provides the Telegram transport: update gating, the
// text-message pipeline and the receipt-photo path.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"gitlab.com/bekzodm/hamyon-bot/internal/carryover"
	"gitlab.com/bekzodm/hamyon-bot/internal/config"
	"gitlab.com/bekzodm/hamyon-bot/internal/executor"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/memory"
	"gitlab.com/bekzodm/hamyon-bot/internal/planner"
	"gitlab.com/bekzodm/hamyon-bot/internal/repository"
	"gitlab.com/bekzodm/hamyon-bot/internal/responder"
	"gitlab.com/bekzodm/hamyon-bot/internal/telemetry"
)

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot *bot.Bot
	cfg *config.Config

	// username is the bot's @handle without the "@", used for group-chat
	// addressing. Resolved once before polling starts.
	username string

	planner   *planner.Planner
	executor  *executor.Executor
	responder *responder.Responder
	memory    *memory.Memory
	gemini    *gemini.Client
}

// New creates a new Bot instance wired to the database pool and the
// interpreter client.
func New(cfg *config.Config, pool *pgxpool.Pool, gem *gemini.Client) (*Bot, error) {
	expenseRepo := repository.NewExpenseRepository(pool)
	budgetRepo := repository.NewBudgetRepository(pool)
	overrideRepo := repository.NewOverrideRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	pendingRepo := repository.NewPendingRepository(pool)

	limits := carryover.New(budgetRepo, overrideRepo, expenseRepo)

	b := &Bot{
		cfg:       cfg,
		username:  cfg.BotUsername,
		planner:   planner.New(gem, cfg.DefaultCurrency, cfg.Location),
		executor:  executor.New(expenseRepo, budgetRepo, pendingRepo, limits, cfg.Location, cfg.PendingTTL),
		responder: responder.New(gem),
		memory:    memory.New(conversationRepo, cfg.HistoryWindow, cfg.SummaryMaxChars),
		gemini:    gem,
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken, bot.WithDefaultHandler(b.defaultHandler))
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	b.bot = telegramBot

	return b, nil
}

// Start resolves the bot's own username when it was not configured, then
// begins polling for updates. Blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.username == "" {
		me, err := b.bot.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve bot username: %w", err)
		}
		b.username = me.Username
	}

	logger.Log.Info().Str("username", b.username).Msg("Bot started polling")
	b.bot.Start(ctx)
	return nil
}

// defaultHandler routes every update. There are no slash commands; all text
// goes through the interpretation pipeline and photos through the receipt
// path.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.dispatch(ctx, tgBot, update)
}

// dispatch is the testable core of defaultHandler.
func (b *Bot) dispatch(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	ctx, span := telemetry.Tracer("bot").Start(ctx, "dispatch")
	defer span.End()

	if len(msg.Photo) > 0 {
		if _, ok := b.addressedText(msg, msg.Caption); ok {
			b.handlePhotoCore(ctx, tg, msg)
		}
		return
	}

	text, ok := b.addressedText(msg, msg.Text)
	if !ok || strings.TrimSpace(text) == "" {
		return
	}
	b.handleTextCore(ctx, tg, msg, strings.TrimSpace(text))
}

// addressedText decides whether the message is directed at the bot and
// returns the text with the mention stripped. Private chats always qualify;
// in groups the message must mention @username or reply to one of the bot's
// own messages.
func (b *Bot) addressedText(msg *tgmodels.Message, text string) (string, bool) {
	if msg.Chat.Type == tgmodels.ChatTypePrivate {
		return text, true
	}

	mention := "@" + b.username
	if b.username != "" && containsFold(text, mention) {
		return stripMention(text, mention), true
	}

	reply := msg.ReplyToMessage
	if reply != nil && reply.From != nil && reply.From.IsBot &&
		strings.EqualFold(reply.From.Username, b.username) {
		return text, true
	}

	return "", false
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// stripMention removes every occurrence of the mention, preserving the rest
// of the utterance.
func stripMention(text, mention string) string {
	lower := strings.ToLower(text)
	lowerMention := strings.ToLower(mention)

	var sb strings.Builder
	for {
		idx := strings.Index(lower, lowerMention)
		if idx < 0 {
			sb.WriteString(text)
			break
		}
		sb.WriteString(text[:idx])
		text = text[idx+len(mention):]
		lower = lower[idx+len(lowerMention):]
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

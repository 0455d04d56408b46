package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/planner"
)

// receiptFallback asks the user to type the expense when the photo yields
// nothing usable.
const receiptFallback = "I couldn't read an amount from that photo. Please type the expense instead, for example \"taxi 25000\"."

// receiptUtterance stands in for the user's text in conversation memory
// when the input was a photo with no caption.
const receiptUtterance = "(sent a receipt photo)"

// maxDownloadBytes caps a receipt download. Telegram photos are well under
// this.
const maxDownloadBytes = 20 << 20

// handlePhotoCore downloads the largest variant of the photo, extracts an
// expense from it and runs the result through the executor. The planner is
// bypassed: the extraction already produces a single add_expense action.
func (b *Bot) handlePhotoCore(ctx context.Context, tg TelegramAPI, msg *tgmodels.Message) {
	tenant := models.Tenant{ChatID: msg.Chat.ID, UserID: msg.From.ID}

	logger.Log.Info().
		Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
		Int("variants", len(msg.Photo)).
		Msg("Received photo")

	// A photo is not a yes/no answer; an open confirmation stays open.
	pending, err := b.executor.PendingFor(ctx, tenant)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to read pending action")
	} else if pending != nil {
		b.reply(ctx, tg, msg.Chat.ID, pendingReminder)
		return
	}

	// Telegram orders photo sizes ascending; the last one is the largest.
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	imageBytes, err := b.downloadFile(ctx, tg, fileID)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to download photo")
		b.reply(ctx, tg, msg.Chat.ID, "I couldn't download that photo, please try again.")
		return
	}

	receipt, err := b.gemini.ParseReceipt(ctx, imageBytes, "image/jpeg", b.cfg.DefaultCurrency)
	if err != nil {
		if !errors.Is(err, gemini.ErrUnrecognized) && !errors.Is(err, gemini.ErrParseTimeout) {
			logger.Log.Error().Err(err).
				Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
				Msg("Receipt extraction failed")
		}
		b.reply(ctx, tg, msg.Chat.ID, receiptFallback)
		return
	}

	currency := receipt.Currency
	if _, ok := models.SupportedCurrencies[currency]; !ok {
		currency = b.cfg.DefaultCurrency
	}

	action := planner.Action{
		Type:     planner.ActionAddExpense,
		Amount:   receipt.Amount,
		Currency: currency,
		Category: receipt.Category,
		Note:     receipt.Note,
		Day:      models.DayOf(time.Now(), b.cfg.Location),
	}

	state, err := b.memory.Load(ctx, tenant)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Failed to load conversation state")
		state = nil
	}

	results, err := b.executor.Execute(ctx, tenant, []planner.Action{action})
	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Execution failed for receipt expense")
		b.reply(ctx, tg, msg.Chat.ID, "Something went wrong on my side, please try again.")
		return
	}

	utterance := msg.Caption
	if utterance == "" {
		utterance = receiptUtterance
	}

	reply, summary := b.responder.Respond(ctx, tenant, utterance, results, state)
	b.reply(ctx, tg, msg.Chat.ID, reply)
	b.persist(ctx, tenant, state, utterance, reply, summary)
}

// downloadFile fetches a Telegram file's bytes via its download link.
func (b *Bot) downloadFile(ctx context.Context, tg TelegramAPI, fileID string) ([]byte, error) {
	file, err := tg.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	url := tg.FileDownloadLink(file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading file", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return data, nil
}

package bot

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/go-analyze/charts"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/executor"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/planner"
	"gitlab.com/bekzodm/hamyon-bot/internal/repository"
)

// sendStatsChart attaches a breakdown chart to a stats reply. Chart failures
// are logged and swallowed; the textual breakdown already went out.
func (b *Bot) sendStatsChart(ctx context.Context, tg TelegramAPI, chatID int64, results []executor.Result) {
	for _, result := range results {
		if result.Action.Type != planner.ActionGetStats || !result.OK() || len(result.Breakdown) == 0 {
			continue
		}

		title := fmt.Sprintf("Spending %s to %s",
			result.StartDay.Format(models.DayFormat), result.EndDay.Format(models.DayFormat))
		chartData, err := GenerateBreakdownChart(result.Breakdown, title)
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to generate stats chart")
			continue
		}

		filename := fmt.Sprintf("spending_%s.png", result.EndDay.Format(models.DayFormat))
		_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:   chatID,
			Document: &tgmodels.InputFileUpload{Filename: filename, Data: bytes.NewReader(chartData)},
			Caption:  title,
		})
		if err != nil {
			logger.Log.Error().Err(err).
				Int64("chat_id", chatID).
				Msg("Failed to send stats chart")
		}
	}
}

// GenerateBreakdownChart creates a pie chart of spending by category.
// Returns PNG image as bytes.
func GenerateBreakdownChart(rows []repository.BreakdownRow, title string) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to chart")
	}

	totals := aggregateByCategory(rows)

	values := make([]float64, 0, len(totals))
	categoryNames := make([]string, 0, len(totals))
	for _, slice := range totals {
		categoryNames = append(categoryNames, slice.Name)
		values = append(values, slice.Total.InexactFloat64())
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{Text: title}),
		charts.LegendLabelsOptionFunc(categoryNames),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// categorySlice is one pie slice: a category and its total.
type categorySlice struct {
	Name  string
	Total decimal.Decimal
}

// aggregateByCategory folds subcategory rows into per-category totals,
// largest first so slice and legend order is stable across renders.
func aggregateByCategory(rows []repository.BreakdownRow) []categorySlice {
	totals := make(map[string]decimal.Decimal)
	for _, row := range rows {
		name := row.Category
		if name == "" {
			name = "uncategorized"
		}
		totals[name] = totals[name].Add(row.Amount)
	}

	slices := make([]categorySlice, 0, len(totals))
	for name, total := range totals {
		slices = append(slices, categorySlice{Name: name, Total: total})
	}
	sort.Slice(slices, func(i, j int) bool {
		if !slices[i].Total.Equal(slices[j].Total) {
			return slices[i].Total.GreaterThan(slices[j].Total)
		}
		return slices[i].Name < slices[j].Name
	})
	return slices
}

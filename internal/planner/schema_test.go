package planner

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

var testToday = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func TestValidateAddExpense(t *testing.T) {
	t.Parallel()

	t.Run("valid expense with defaults", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:   "add_expense",
			Amount: "35000",
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.Equal(t, "35000", action.Amount.String())
		require.Equal(t, "UZS", action.Currency)
		require.Equal(t, "other", action.Category)
		require.True(t, action.Day.Equal(testToday))
	})

	t.Run("explicit date", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:   "add_expense",
			Amount: "1000",
			Date:   "2026-08-20",
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.Equal(t, "2026-08-20", action.Day.Format(models.DayFormat))
	})

	t.Run("word amount is invalid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:   "add_expense",
			Amount: "thirty five thousand",
		}, "UZS", testToday)

		require.NotEmpty(t, action.Invalid)
		require.Contains(t, action.Invalid, "not a valid positive number")
	})

	t.Run("zero and negative amounts are invalid", func(t *testing.T) {
		t.Parallel()
		for _, amount := range []string{"0", "-500"} {
			action := validateAction(gemini.RawAction{Type: "add_expense", Amount: amount}, "UZS", testToday)
			require.NotEmpty(t, action.Invalid, "amount %s", amount)
		}
	})

	t.Run("garbage date is invalid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:   "add_expense",
			Amount: "1000",
			Date:   "next tuesday",
		}, "UZS", testToday)

		require.NotEmpty(t, action.Invalid)
	})

	t.Run("category is normalized to one token", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:     "add_expense",
			Amount:   "1000",
			Category: "  Eating  OUT ",
		}, "UZS", testToday)

		require.Equal(t, "eating_out", action.Category)
	})
}

func TestValidateSetBudget(t *testing.T) {
	t.Parallel()

	t.Run("daily limit only", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "set_budget",
			Category:   "food",
			DailyLimit: "50000",
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.NotNil(t, action.DailyLimit)
		require.Equal(t, "50000", action.DailyLimit.String())
		require.Nil(t, action.MonthlyLimit)
	})

	t.Run("missing category is invalid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "set_budget",
			DailyLimit: "50000",
		}, "UZS", testToday)

		require.Contains(t, action.Invalid, "needs a category")
	})

	t.Run("no limits at all is invalid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:     "set_budget",
			Category: "food",
		}, "UZS", testToday)

		require.Contains(t, action.Invalid, "daily or monthly limit")
	})

	t.Run("negative limit is invalid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:         "set_budget",
			Category:     "food",
			MonthlyLimit: "-1",
		}, "UZS", testToday)

		require.NotEmpty(t, action.Invalid)
	})
}

func TestValidateQueries(t *testing.T) {
	t.Parallel()

	t.Run("stats defaults to month to date", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{Type: "get_stats"}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.Equal(t, "2026-08-01", action.StartDay.Format(models.DayFormat))
		require.Equal(t, "2026-08-28", action.EndDay.Format(models.DayFormat))
	})

	t.Run("history defaults to the last 30 days", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{Type: "get_history"}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.Equal(t, "2026-07-29", action.StartDay.Format(models.DayFormat))
		require.Equal(t, "2026-08-28", action.EndDay.Format(models.DayFormat))
	})

	t.Run("reversed range is swapped", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:      "get_stats",
			StartDate: "2026-08-20",
			EndDate:   "2026-08-10",
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.True(t, action.StartDay.Before(action.EndDay))
	})

	t.Run("get_categories takes no parameters", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{Type: "get_categories"}, "UZS", testToday)
		require.Empty(t, action.Invalid)
	})
}

func TestValidateDeleteExpense(t *testing.T) {
	t.Parallel()

	t.Run("by_id needs ids", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "delete_expense",
			DeleteMode: "by_id",
		}, "UZS", testToday)

		require.Contains(t, action.Invalid, "at least one expense id")
	})

	t.Run("by_id with ids is valid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "delete_expense",
			DeleteMode: "by_id",
			ExpenseIDs: []int64{3, 7},
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.Equal(t, []int64{3, 7}, action.ExpenseIDs)
	})

	t.Run("last is valid without parameters", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "delete_expense",
			DeleteMode: "last",
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
	})

	t.Run("filter requires an explicit date range", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "delete_expense",
			DeleteMode: "filter",
			Category:   "coffee",
		}, "UZS", testToday)

		require.Contains(t, action.Invalid, "explicit date range")
	})

	t.Run("filter with range is valid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "delete_expense",
			DeleteMode: "filter",
			Category:   "coffee",
			StartDate:  "2026-08-01",
			EndDate:    "2026-08-28",
		}, "UZS", testToday)

		require.Empty(t, action.Invalid)
		require.Equal(t, "coffee", action.Category)
	})

	t.Run("unknown mode is invalid", func(t *testing.T) {
		t.Parallel()
		action := validateAction(gemini.RawAction{
			Type:       "delete_expense",
			DeleteMode: "everything",
		}, "UZS", testToday)

		require.Contains(t, action.Invalid, "unknown delete mode")
	})
}

func TestValidateUnknownType(t *testing.T) {
	t.Parallel()

	action := validateAction(gemini.RawAction{Type: "transfer_money"}, "UZS", testToday)
	require.Contains(t, action.Invalid, "unknown action type")
}

func TestNormalizeToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, "coffee", normalizeToken("Coffee", ""))
	require.Equal(t, "eating_out", normalizeToken("eating out", ""))
	require.Equal(t, "fallback", normalizeToken("   ", "fallback"))
	require.Len(t, normalizeToken("a very long category name that never ends", ""), MaxCategoryTokenLength)

	cyrillic := normalizeToken(strings.Repeat("продукты ", 6), "")
	require.True(t, utf8.ValidString(cyrillic))
	require.Len(t, []rune(cyrillic), MaxCategoryTokenLength)
}

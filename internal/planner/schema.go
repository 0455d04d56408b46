// Package planner translates free-form utterances into validated action
// lists, delegating language understanding to an external interpreter while
// owning the schema contract.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// Action type names.
const (
	ActionAddExpense    = "add_expense"
	ActionSetBudget     = "set_budget"
	ActionGetHistory    = "get_history"
	ActionGetCategories = "get_categories"
	ActionGetStats      = "get_stats"
	ActionDeleteExpense = "delete_expense"
)

// Delete modes.
const (
	DeleteByID   = "by_id"
	DeleteLast   = "last"
	DeleteFilter = "filter"
)

// MaxCategoryTokenLength bounds normalized category tokens.
const MaxCategoryTokenLength = 30

// Action is one validated mutation or query. Invalid holds the validation
// failure when the interpreter emitted an action that does not fit the
// schema; such actions travel through the batch as error results instead of
// aborting it.
type Action struct {
	Type string

	Amount      decimal.Decimal
	Currency    string
	Category    string
	Subcategory string
	Note        string

	// Day is the calendar day for add_expense.
	Day time.Time
	// StartDay/EndDay bound range queries and filter deletes, inclusive.
	StartDay time.Time
	EndDay   time.Time

	DailyLimit   *decimal.Decimal
	MonthlyLimit *decimal.Decimal

	DeleteMode string
	ExpenseIDs []int64

	Invalid string
}

// Plan is the planner's output: either a clarifying question or a list of
// actions, never both.
type Plan struct {
	Clarify string
	Actions []Action
}

// IsClarify reports whether the plan is a clarification request.
func (p *Plan) IsClarify() bool {
	return p.Clarify != ""
}

// validateAction converts one untrusted interpreter action into a validated
// Action, applying safe defaults. today is the current calendar day in the
// bot's timezone.
func validateAction(raw gemini.RawAction, defaultCurrency string, today time.Time) Action {
	action := Action{Type: strings.TrimSpace(raw.Type)}

	switch action.Type {
	case ActionAddExpense:
		amount, err := parseAmount(raw.Amount)
		if err != nil {
			action.Invalid = fmt.Sprintf("amount %q is not a valid positive number", raw.Amount)
			return action
		}
		action.Amount = amount
		action.Currency = normalizeCurrency(raw.Currency, defaultCurrency)
		action.Category = normalizeToken(raw.Category, "other")
		action.Subcategory = normalizeToken(raw.Subcategory, "")
		action.Note = strings.TrimSpace(raw.Note)
		day, err := parseDay(raw.Date, today)
		if err != nil {
			action.Invalid = fmt.Sprintf("date %q is not a valid ISO date", raw.Date)
			return action
		}
		action.Day = day

	case ActionSetBudget:
		action.Currency = normalizeCurrency(raw.Currency, defaultCurrency)
		action.Category = normalizeToken(raw.Category, "")
		if action.Category == "" {
			action.Invalid = "set_budget needs a category"
			return action
		}
		var err error
		if action.DailyLimit, err = parseLimit(raw.DailyLimit); err != nil {
			action.Invalid = fmt.Sprintf("daily limit %q is not a valid number", raw.DailyLimit)
			return action
		}
		if action.MonthlyLimit, err = parseLimit(raw.MonthlyLimit); err != nil {
			action.Invalid = fmt.Sprintf("monthly limit %q is not a valid number", raw.MonthlyLimit)
			return action
		}
		if action.DailyLimit == nil && action.MonthlyLimit == nil {
			action.Invalid = "set_budget needs a daily or monthly limit"
			return action
		}

	case ActionGetHistory, ActionGetStats:
		action.Category = normalizeToken(raw.Category, "")
		action.Currency = strings.ToUpper(strings.TrimSpace(raw.Currency))
		start, end, err := parseRange(raw.StartDate, raw.EndDate, defaultRange(action.Type, today))
		if err != nil {
			action.Invalid = err.Error()
			return action
		}
		action.StartDay, action.EndDay = start, end

	case ActionGetCategories:
		// No parameters.

	case ActionDeleteExpense:
		action.DeleteMode = strings.TrimSpace(raw.DeleteMode)
		switch action.DeleteMode {
		case DeleteByID:
			if len(raw.ExpenseIDs) == 0 {
				action.Invalid = "delete by id needs at least one expense id"
				return action
			}
			action.ExpenseIDs = raw.ExpenseIDs
		case DeleteLast:
			// No parameters.
		case DeleteFilter:
			if raw.StartDate == "" || raw.EndDate == "" {
				// Destructive filters never get defaulted date ranges.
				action.Invalid = "delete by filter needs an explicit date range"
				return action
			}
			start, end, err := parseRange(raw.StartDate, raw.EndDate, dayRange{})
			if err != nil {
				action.Invalid = err.Error()
				return action
			}
			action.StartDay, action.EndDay = start, end
			action.Category = normalizeToken(raw.Category, "")
			action.Subcategory = normalizeToken(raw.Subcategory, "")
		default:
			action.Invalid = fmt.Sprintf("unknown delete mode %q", raw.DeleteMode)
			return action
		}

	default:
		action.Invalid = fmt.Sprintf("unknown action type %q", raw.Type)
	}

	return action
}

type dayRange struct {
	start, end time.Time
}

func defaultRange(actionType string, today time.Time) dayRange {
	if actionType == ActionGetStats {
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return dayRange{start: monthStart, end: today}
	}
	return dayRange{start: today.AddDate(0, 0, -30), end: today}
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseLimit(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	limit, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if limit.IsNegative() {
		return nil, fmt.Errorf("limit must not be negative")
	}
	return &limit, nil
}

func parseDay(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	return time.Parse(models.DayFormat, s)
}

func parseRange(startStr, endStr string, fallback dayRange) (time.Time, time.Time, error) {
	start, err := parseDay(startStr, fallback.start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %q is not a valid ISO date", startStr)
	}
	end, err := parseDay(endStr, fallback.end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %q is not a valid ISO date", endStr)
	}
	if end.Before(start) {
		start, end = end, start
	}
	return start, end, nil
}

// normalizeToken lowercases and collapses a category-like value into one
// short token.
func normalizeToken(s, fallback string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return fallback
	}
	token := strings.Join(fields, "_")
	if runes := []rune(token); len(runes) > MaxCategoryTokenLength {
		// Cut on a rune boundary; categories may be Cyrillic.
		token = string(runes[:MaxCategoryTokenLength])
	}
	return token
}

func normalizeCurrency(s, fallback string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return s
}

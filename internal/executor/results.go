package executor

import (
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/planner"
	"gitlab.com/bekzodm/hamyon-bot/internal/repository"
)

// BudgetStatus reports one limit dimension after a mutation. Left may be
// negative when the limit is exceeded. CarryReason is set only when a
// rollover changed the effective daily limit.
type BudgetStatus struct {
	Limit       decimal.Decimal
	Spent       decimal.Decimal
	Left        decimal.Decimal
	Low         bool
	CarryReason string
}

// ConfirmPrompt describes a destructive match awaiting a yes/no answer.
type ConfirmPrompt struct {
	Count       int
	Total       decimal.Decimal
	StartDay    time.Time
	EndDay      time.Time
	Category    string
	Subcategory string
}

// Result is the structured outcome of one action. Exactly the fields
// relevant to the action type are populated; Err marks a failed action
// without affecting its batch siblings.
type Result struct {
	Action planner.Action

	Err       string
	Retryable bool

	// add_expense
	Expense *models.Expense
	Daily   *BudgetStatus
	Monthly *BudgetStatus

	// set_budget
	Budget *models.BudgetBase

	// get_history / get_stats
	History   []models.Expense
	Breakdown []repository.BreakdownRow
	StartDay  time.Time
	EndDay    time.Time

	// get_categories
	Categories []repository.CategoryUsage

	// delete_expense
	Deleted        int
	DeletedExpense *models.Expense
	NothingMatched bool
	Confirm        *ConfirmPrompt
	Cancelled      bool
}

// OK reports whether the action completed without error.
func (r *Result) OK() bool {
	return r.Err == ""
}

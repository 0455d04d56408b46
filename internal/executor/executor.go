// Package executor applies validated action plans against the ledger and
// the carryover engine. It owns every mutation invariant; it never produces
// natural-language output.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/carryover"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/planner"
	"gitlab.com/bekzodm/hamyon-bot/internal/repository"
)

// Ledger is the expense store the executor mutates and queries.
type Ledger interface {
	Record(ctx context.Context, expense *models.Expense) error
	Sum(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time, category, currency string) (decimal.Decimal, error)
	Breakdown(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time) ([]repository.BreakdownRow, error)
	Find(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) ([]models.Expense, error)
	Last(ctx context.Context, tenant models.Tenant) (*models.Expense, error)
	Delete(ctx context.Context, tenant models.Tenant, ids []int64) (int, error)
	CountAndSumMatching(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) (int, decimal.Decimal, error)
	DeleteMatching(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) (int, error)
	Categories(ctx context.Context, tenant models.Tenant) ([]repository.CategoryUsage, error)
}

// BudgetStore reads and writes base budgets.
type BudgetStore interface {
	Get(ctx context.Context, tenant models.Tenant, category, currency string) (*models.BudgetBase, error)
	Upsert(ctx context.Context, budget *models.BudgetBase) error
	List(ctx context.Context, tenant models.Tenant) ([]models.BudgetBase, error)
}

// PendingStore holds the per-tenant confirmation marker.
type PendingStore interface {
	Get(ctx context.Context, tenant models.Tenant) (*models.PendingAction, error)
	Set(ctx context.Context, p *models.PendingAction) error
	Clear(ctx context.Context, tenant models.Tenant) error
}

// Limiter resolves and rolls daily limits.
type Limiter interface {
	EffectiveDailyLimit(ctx context.Context, tenant models.Tenant, category, currency string, day time.Time) (carryover.Limit, bool, error)
	RollForward(ctx context.Context, tenant models.Tenant, category, currency string, day time.Time) (*models.DailyOverride, error)
}

// lowBudgetFraction flags a warning when the remaining budget drops below
// this share of the limit.
var lowBudgetFraction = decimal.NewFromFloat(0.1)

// Executor applies action batches.
type Executor struct {
	ledger   Ledger
	budgets  BudgetStore
	pendings PendingStore
	limits   Limiter

	location   *time.Location
	pendingTTL time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// New creates an Executor.
func New(
	ledger Ledger,
	budgets BudgetStore,
	pendings PendingStore,
	limits Limiter,
	location *time.Location,
	pendingTTL time.Duration,
) *Executor {
	return &Executor{
		ledger:     ledger,
		budgets:    budgets,
		pendings:   pendings,
		limits:     limits,
		location:   location,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// Execute applies each action in order and returns one Result per action.
// A malformed or failing action yields an error Result without aborting the
// batch; there is no cross-action commit guarantee. Any previously pending
// confirmation is superseded by the new plan.
func (e *Executor) Execute(ctx context.Context, tenant models.Tenant, actions []planner.Action) ([]Result, error) {
	if err := e.pendings.Clear(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to supersede pending action: %w", err)
	}

	results := make([]Result, 0, len(actions))
	for _, action := range actions {
		results = append(results, e.executeOne(ctx, tenant, action))
	}
	return results, nil
}

func (e *Executor) executeOne(ctx context.Context, tenant models.Tenant, action planner.Action) Result {
	result := Result{Action: action}

	if action.Invalid != "" {
		result.Err = action.Invalid
		return result
	}

	var err error
	switch action.Type {
	case planner.ActionAddExpense:
		err = e.addExpense(ctx, tenant, action, &result)
	case planner.ActionSetBudget:
		err = e.setBudget(ctx, tenant, action, &result)
	case planner.ActionGetHistory:
		err = e.getHistory(ctx, tenant, action, &result)
	case planner.ActionGetCategories:
		err = e.getCategories(ctx, tenant, &result)
	case planner.ActionGetStats:
		err = e.getStats(ctx, tenant, action, &result)
	case planner.ActionDeleteExpense:
		err = e.deleteExpense(ctx, tenant, action, &result)
	default:
		result.Err = fmt.Sprintf("unknown action type %q", action.Type)
		return result
	}

	if err != nil {
		logger.Log.Error().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Str("action", action.Type).
			Msg("Action failed")
		result.Err = "storage temporarily unavailable"
		result.Retryable = true
	}
	return result
}

// addExpense rolls the carryover forward for the target day before the
// insert, records the expense, then reports the remaining daily and monthly
// budgets.
func (e *Executor) addExpense(ctx context.Context, tenant models.Tenant, action planner.Action, result *Result) error {
	day := action.Day

	if _, err := e.limits.RollForward(ctx, tenant, action.Category, action.Currency, day); err != nil {
		return err
	}

	expense := &models.Expense{
		ChatID:      tenant.ChatID,
		UserID:      tenant.UserID,
		Amount:      action.Amount,
		Currency:    action.Currency,
		Category:    action.Category,
		Subcategory: action.Subcategory,
		Note:        action.Note,
		SpentAt:     e.spentAtFor(day),
		SpentDay:    day,
	}
	if err := e.ledger.Record(ctx, expense); err != nil {
		return err
	}
	result.Expense = expense

	daily, monthly, err := e.budgetStatus(ctx, tenant, action.Category, action.Currency, day)
	if err != nil {
		return err
	}
	result.Daily = daily
	result.Monthly = monthly
	return nil
}

// budgetStatus computes the daily and monthly remaining-budget figures for
// a category/currency as of day. A nil status means no limit is configured;
// downstream code must report it as absent, never as zero.
func (e *Executor) budgetStatus(
	ctx context.Context,
	tenant models.Tenant,
	category, currency string,
	day time.Time,
) (daily, monthly *BudgetStatus, err error) {
	limit, ok, err := e.limits.EffectiveDailyLimit(ctx, tenant, category, currency, day)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		spent, err := e.ledger.Sum(ctx, tenant, day, day, category, currency)
		if err != nil {
			return nil, nil, err
		}
		daily = newBudgetStatus(limit.Amount, spent)
		if limit.Source == carryover.SourceOverride {
			daily.CarryReason = limit.Reason
		}
	}

	budget, err := e.budgets.Get(ctx, tenant, category, currency)
	if err != nil {
		return nil, nil, err
	}
	if budget.HasMonthly() {
		monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, -1)
		spent, err := e.ledger.Sum(ctx, tenant, monthStart, monthEnd, category, currency)
		if err != nil {
			return nil, nil, err
		}
		monthly = newBudgetStatus(*budget.MonthlyLimit, spent)
	}

	return daily, monthly, nil
}

func newBudgetStatus(limit, spent decimal.Decimal) *BudgetStatus {
	left := limit.Sub(spent)
	return &BudgetStatus{
		Limit: limit,
		Spent: spent,
		Left:  left,
		Low:   left.LessThan(limit.Mul(lowBudgetFraction)),
	}
}

// setBudget upserts the base budget. Existing daily overrides are left
// untouched: a day's allowance stays frozen once written.
func (e *Executor) setBudget(ctx context.Context, tenant models.Tenant, action planner.Action, result *Result) error {
	budget := &models.BudgetBase{
		ChatID:       tenant.ChatID,
		UserID:       tenant.UserID,
		Category:     action.Category,
		Currency:     action.Currency,
		DailyLimit:   action.DailyLimit,
		MonthlyLimit: action.MonthlyLimit,
	}
	if err := e.budgets.Upsert(ctx, budget); err != nil {
		return err
	}
	result.Budget = budget
	return nil
}

func (e *Executor) getHistory(ctx context.Context, tenant models.Tenant, action planner.Action, result *Result) error {
	filter := repository.ExpenseFilter{
		Category:    action.Category,
		Subcategory: action.Subcategory,
		Currency:    action.Currency,
		Limit:       20,
	}
	expenses, err := e.ledger.Find(ctx, tenant, action.StartDay, action.EndDay, filter)
	if err != nil {
		return err
	}
	result.History = expenses
	result.StartDay = action.StartDay
	result.EndDay = action.EndDay
	return nil
}

func (e *Executor) getCategories(ctx context.Context, tenant models.Tenant, result *Result) error {
	usage, err := e.ledger.Categories(ctx, tenant)
	if err != nil {
		return err
	}
	result.Categories = usage
	return nil
}

func (e *Executor) getStats(ctx context.Context, tenant models.Tenant, action planner.Action, result *Result) error {
	breakdown, err := e.ledger.Breakdown(ctx, tenant, action.StartDay, action.EndDay)
	if err != nil {
		return err
	}
	result.Breakdown = breakdown
	result.StartDay = action.StartDay
	result.EndDay = action.EndDay
	return nil
}

// deleteExpense applies the three delete modes. by_id and the unambiguous
// last proceed directly; filter mode always detours through a pending
// confirmation when it matches anything.
func (e *Executor) deleteExpense(ctx context.Context, tenant models.Tenant, action planner.Action, result *Result) error {
	switch action.DeleteMode {
	case planner.DeleteByID:
		deleted, err := e.ledger.Delete(ctx, tenant, action.ExpenseIDs)
		if err != nil {
			return err
		}
		result.Deleted = deleted
		return nil

	case planner.DeleteLast:
		last, err := e.ledger.Last(ctx, tenant)
		if err != nil {
			return err
		}
		if last == nil {
			result.NothingMatched = true
			return nil
		}
		deleted, err := e.ledger.Delete(ctx, tenant, []int64{last.ID})
		if err != nil {
			return err
		}
		result.Deleted = deleted
		result.DeletedExpense = last
		return nil

	case planner.DeleteFilter:
		filter := repository.ExpenseFilter{
			Category:    action.Category,
			Subcategory: action.Subcategory,
		}
		count, total, err := e.ledger.CountAndSumMatching(ctx, tenant, action.StartDay, action.EndDay, filter)
		if err != nil {
			return err
		}
		if count == 0 {
			result.NothingMatched = true
			return nil
		}

		payload, err := json.Marshal(pendingDelete{
			StartDay:    action.StartDay.Format(models.DayFormat),
			EndDay:      action.EndDay.Format(models.DayFormat),
			Category:    action.Category,
			Subcategory: action.Subcategory,
		})
		if err != nil {
			return fmt.Errorf("failed to encode pending delete: %w", err)
		}
		if err := e.pendings.Set(ctx, &models.PendingAction{
			ChatID:  tenant.ChatID,
			UserID:  tenant.UserID,
			Payload: payload,
		}); err != nil {
			return err
		}

		result.Confirm = &ConfirmPrompt{
			Count:       count,
			Total:       total,
			StartDay:    action.StartDay,
			EndDay:      action.EndDay,
			Category:    action.Category,
			Subcategory: action.Subcategory,
		}
		return nil

	default:
		result.Err = fmt.Sprintf("unknown delete mode %q", action.DeleteMode)
		return nil
	}
}

// PendingFor returns the tenant's live pending action, enforcing the TTL:
// expired entries are cleared and reported as absent, so a stale "yes" can
// never trigger a forgotten deletion.
func (e *Executor) PendingFor(ctx context.Context, tenant models.Tenant) (*models.PendingAction, error) {
	pending, err := e.pendings.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}
	if pending.Expired(e.now(), e.pendingTTL) {
		if err := e.pendings.Clear(ctx, tenant); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return pending, nil
}

// ResolvePending consumes the pending confirmation. confirmed=true performs
// the stored deletion; confirmed=false clears it without touching the
// ledger. Returns nil when nothing was pending.
func (e *Executor) ResolvePending(ctx context.Context, tenant models.Tenant, confirmed bool) (*Result, error) {
	pending, err := e.PendingFor(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}

	if err := e.pendings.Clear(ctx, tenant); err != nil {
		return nil, err
	}

	result := &Result{Action: planner.Action{Type: planner.ActionDeleteExpense, DeleteMode: planner.DeleteFilter}}
	if !confirmed {
		result.Cancelled = true
		return result, nil
	}

	var stored pendingDelete
	if err := json.Unmarshal(pending.Payload, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode pending delete: %w", err)
	}
	startDay, err := time.Parse(models.DayFormat, stored.StartDay)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pending start day: %w", err)
	}
	endDay, err := time.Parse(models.DayFormat, stored.EndDay)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pending end day: %w", err)
	}

	deleted, err := e.ledger.DeleteMatching(ctx, tenant, startDay, endDay, repository.ExpenseFilter{
		Category:    stored.Category,
		Subcategory: stored.Subcategory,
	})
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted
	return result, nil
}

// spentAtFor picks the instant for an expense on day, preserving the
// invariant day == date(instant) in the configured timezone.
func (e *Executor) spentAtFor(day time.Time) time.Time {
	now := e.now()
	if models.SameDay(models.DayOf(now, e.location), day) {
		return now
	}
	// Backdated entry: noon local time avoids midnight boundary surprises.
	return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, e.location)
}

// pendingDelete is the JSON payload stored while a filter delete awaits
// confirmation.
type pendingDelete struct {
	StartDay    string `json:"start_day"`
	EndDay      string `json:"end_day"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

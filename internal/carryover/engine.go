// Package carryover computes effective daily spending limits, rolling the
// previous day's surplus or deficit into the current day's allowance.
package carryover

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// Limit sources reported by EffectiveDailyLimit.
const (
	SourceOverride = "override"
	SourceBase     = "base"
)

// BudgetSource reads configured base budgets. Returns nil when no budget
// exists for the key.
type BudgetSource interface {
	Get(ctx context.Context, tenant models.Tenant, category, currency string) (*models.BudgetBase, error)
}

// OverrideStore reads and writes frozen per-day limits. Create must be
// first-write-wins: it reports false when an override already existed.
type OverrideStore interface {
	Get(ctx context.Context, tenant models.Tenant, category, currency string, day time.Time) (*models.DailyOverride, error)
	Create(ctx context.Context, o *models.DailyOverride) (bool, error)
}

// SpendSource totals recorded spending over an inclusive day range.
type SpendSource interface {
	Sum(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time, category, currency string) (decimal.Decimal, error)
}

// Limit is an effective daily limit together with where it came from.
type Limit struct {
	Amount decimal.Decimal
	Source string
	Reason string
}

// Engine applies the carryover policy: both surplus and deficit roll
// forward, anchored to the prior day's effective limit but re-based on the
// configured daily limit so drift never compounds:
//
//	today = max(0, baseDaily + (yesterdayEffective - yesterdaySpent))
//
// Days with no frozen limit and no spending do not roll; the next active
// day simply starts at the base limit.
type Engine struct {
	budgets   BudgetSource
	overrides OverrideStore
	spending  SpendSource
}

// New creates a carryover engine over the given stores.
func New(budgets BudgetSource, overrides OverrideStore, spending SpendSource) *Engine {
	return &Engine{budgets: budgets, overrides: overrides, spending: spending}
}

// EffectiveDailyLimit resolves the applicable limit for one category,
// currency and day. ok is false when no budget is configured at all;
// callers must treat that as "no warning possible", never as zero.
func (e *Engine) EffectiveDailyLimit(
	ctx context.Context,
	tenant models.Tenant,
	category, currency string,
	day time.Time,
) (Limit, bool, error) {
	override, err := e.overrides.Get(ctx, tenant, category, currency, day)
	if err != nil {
		return Limit{}, false, fmt.Errorf("failed to resolve override: %w", err)
	}
	if override != nil {
		return Limit{Amount: override.Limit, Source: SourceOverride, Reason: override.Reason}, true, nil
	}

	budget, err := e.budgets.Get(ctx, tenant, category, currency)
	if err != nil {
		return Limit{}, false, fmt.Errorf("failed to resolve budget: %w", err)
	}
	if budget.HasDaily() {
		return Limit{Amount: *budget.DailyLimit, Source: SourceBase}, true, nil
	}

	return Limit{}, false, nil
}

// RollForward materializes the override for day from the previous day's
// outcome. It is idempotent: if an override already exists for day it does
// nothing, so it is safe to call redundantly before every transaction.
// Returns the override written by this call, or nil when nothing changed.
func (e *Engine) RollForward(
	ctx context.Context,
	tenant models.Tenant,
	category, currency string,
	day time.Time,
) (*models.DailyOverride, error) {
	existing, err := e.overrides.Get(ctx, tenant, category, currency, day)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing override: %w", err)
	}
	if existing != nil {
		return nil, nil
	}

	budget, err := e.budgets.Get(ctx, tenant, category, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	if !budget.HasDaily() {
		// Nothing to roll without a configured daily limit.
		return nil, nil
	}
	baseDaily := *budget.DailyLimit

	yesterday := day.AddDate(0, 0, -1)

	yesterdayOverride, err := e.overrides.Get(ctx, tenant, category, currency, yesterday)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve yesterday's override: %w", err)
	}

	yesterdaySpent, err := e.spending.Sum(ctx, tenant, yesterday, yesterday, category, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to sum yesterday's spending: %w", err)
	}

	// A day with no frozen limit and no spending was never in play; today
	// starts fresh at the base limit instead of inheriting phantom surplus.
	if yesterdayOverride == nil && yesterdaySpent.IsZero() {
		return nil, nil
	}

	yesterdayLimit := baseDaily
	if yesterdayOverride != nil {
		yesterdayLimit = yesterdayOverride.Limit
	}

	delta := yesterdayLimit.Sub(yesterdaySpent)
	today := baseDaily.Add(delta)
	if today.IsNegative() {
		today = decimal.Zero
	}

	override := &models.DailyOverride{
		ChatID:   tenant.ChatID,
		UserID:   tenant.UserID,
		Category: category,
		Currency: currency,
		Day:      day,
		Limit:    today,
		Reason:   rolloverReason(delta, currency),
	}

	inserted, err := e.overrides.Create(ctx, override)
	if err != nil {
		return nil, fmt.Errorf("failed to persist override: %w", err)
	}
	if !inserted {
		// Lost the race to a concurrent roll; the stored value wins.
		return nil, nil
	}

	logger.Log.Debug().
		Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
		Str("category", category).
		Str("day", day.Format(models.DayFormat)).
		Str("limit", today.String()).
		Str("reason", override.Reason).
		Msg("Rolled daily limit forward")

	return override, nil
}

// rolloverReason distinguishes surplus rollover, deficit rollover and an
// exact match in the human-readable reason stored with the override.
func rolloverReason(delta decimal.Decimal, currency string) string {
	switch {
	case delta.IsPositive():
		return fmt.Sprintf("carried over %s %s unspent from yesterday", delta.String(), currency)
	case delta.IsNegative():
		return fmt.Sprintf("reduced by %s %s overspent yesterday", delta.Neg().String(), currency)
	default:
		return "yesterday's spending matched the limit exactly"
	}
}

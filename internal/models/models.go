// Package models defines the domain entities for the budget assistant.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when the interpreter does not name one.
const DefaultCurrency = "UZS"

// SupportedCurrencies lists all supported currency codes.
var SupportedCurrencies = map[string]string{
	"UZS": "so'm",
	"USD": "$",
	"EUR": "€",
	"RUB": "₽",
	"KZT": "₸",
	"GBP": "£",
}

// DayFormat is the wire format for calendar days (ISO 8601 date).
const DayFormat = "2006-01-02"

// Tenant is the (chat, user) pair that scopes all ledger and budget data.
type Tenant struct {
	ChatID int64
	UserID int64
}

// DayOf projects an instant onto its calendar day in the given location.
// The invariant Expense.SpentDay == DayOf(Expense.SpentAt, loc) is maintained
// by the executor at insert time and never recomputed afterwards.
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two day values name the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Expense is an immutable ledger fact: deletable, never updated.
type Expense struct {
	ID          int64
	ChatID      int64
	UserID      int64
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Subcategory string
	Note        string
	SpentAt     time.Time
	SpentDay    time.Time
	CreatedAt   time.Time
}

// Tenant returns the owning (chat, user) pair.
func (e *Expense) Tenant() Tenant {
	return Tenant{ChatID: e.ChatID, UserID: e.UserID}
}

// BudgetBase holds the configured limits for one (tenant, category, currency).
// A nil limit means "no limit set", which is distinct from a zero limit.
type BudgetBase struct {
	ChatID       int64
	UserID       int64
	Category     string
	Currency     string
	DailyLimit   *decimal.Decimal
	MonthlyLimit *decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasDaily reports whether a daily limit is configured.
func (b *BudgetBase) HasDaily() bool {
	return b != nil && b.DailyLimit != nil
}

// HasMonthly reports whether a monthly limit is configured.
func (b *BudgetBase) HasMonthly() bool {
	return b != nil && b.MonthlyLimit != nil
}

// DailyOverride freezes the effective daily limit for one specific day.
// At most one override exists per key per day; once written it is never
// recomputed for that day, even if the base budget changes afterwards.
type DailyOverride struct {
	ChatID    int64
	UserID    int64
	Category  string
	Currency  string
	Day       time.Time
	Limit     decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// Conversation turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one (role, content) entry in the recent-message window.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the per-tenant interpreter context: a bounded rolling
// summary plus the most recent turns, oldest first.
type ConversationState struct {
	ChatID    int64
	UserID    int64
	Summary   string
	Turns     []Turn
	UpdatedAt time.Time
}

// PendingAction marks a destructive action awaiting a literal yes/no reply.
// Payload is the planner-action JSON to re-execute on confirmation.
type PendingAction struct {
	ChatID    int64
	UserID    int64
	Payload   []byte
	CreatedAt time.Time
}

// Expired reports whether the pending action is older than ttl at now.
func (p *PendingAction) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

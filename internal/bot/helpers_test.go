package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"gitlab.com/bekzodm/hamyon-bot/internal/carryover"
	"gitlab.com/bekzodm/hamyon-bot/internal/config"
	"gitlab.com/bekzodm/hamyon-bot/internal/executor"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/memory"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"gitlab.com/bekzodm/hamyon-bot/internal/planner"
	"gitlab.com/bekzodm/hamyon-bot/internal/repository"
	"gitlab.com/bekzodm/hamyon-bot/internal/responder"
)

// stubInterpreter returns a canned plan for every utterance.
type stubInterpreter struct {
	plan *gemini.RawPlan
	err  error
}

func (s *stubInterpreter) GeneratePlan(_ context.Context, _ gemini.PlanRequest) (*gemini.RawPlan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

// stubComposer returns a canned reply, or an error to force the
// deterministic fallback.
type stubComposer struct {
	resp *gemini.ReplyResponse
	err  error
}

func (s *stubComposer) ComposeReply(_ context.Context, _ gemini.ReplyRequest) (*gemini.ReplyResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

// testLedger is a minimal in-memory executor.Ledger.
type testLedger struct {
	nextID   int64
	expenses []*models.Expense
}

func (l *testLedger) matching(tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) []*models.Expense {
	var out []*models.Expense
	for _, e := range l.expenses {
		if e.Tenant() != tenant || e.SpentDay.Before(startDay) || e.SpentDay.After(endDay) {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Subcategory != "" && e.Subcategory != filter.Subcategory {
			continue
		}
		if filter.Currency != "" && e.Currency != filter.Currency {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (l *testLedger) Record(_ context.Context, e *models.Expense) error {
	l.nextID++
	e.ID = l.nextID
	l.expenses = append(l.expenses, e)
	return nil
}

func (l *testLedger) Sum(_ context.Context, tenant models.Tenant, startDay, endDay time.Time, category, currency string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range l.matching(tenant, startDay, endDay, repository.ExpenseFilter{Category: category, Currency: currency}) {
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (l *testLedger) Breakdown(_ context.Context, tenant models.Tenant, startDay, endDay time.Time) ([]repository.BreakdownRow, error) {
	var rows []repository.BreakdownRow
	for _, e := range l.matching(tenant, startDay, endDay, repository.ExpenseFilter{}) {
		rows = append(rows, repository.BreakdownRow{
			Category: e.Category, Subcategory: e.Subcategory, Currency: e.Currency, Amount: e.Amount,
		})
	}
	return rows, nil
}

func (l *testLedger) Find(_ context.Context, tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) ([]models.Expense, error) {
	var out []models.Expense
	for _, e := range l.matching(tenant, startDay, endDay, filter) {
		out = append(out, *e)
	}
	return out, nil
}

func (l *testLedger) Last(_ context.Context, tenant models.Tenant) (*models.Expense, error) {
	for i := len(l.expenses) - 1; i >= 0; i-- {
		if l.expenses[i].Tenant() == tenant {
			cp := *l.expenses[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (l *testLedger) Delete(_ context.Context, tenant models.Tenant, ids []int64) (int, error) {
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var kept []*models.Expense
	deleted := 0
	for _, e := range l.expenses {
		if e.Tenant() == tenant && idSet[e.ID] {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	l.expenses = kept
	return deleted, nil
}

func (l *testLedger) CountAndSumMatching(_ context.Context, tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) (int, decimal.Decimal, error) {
	matched := l.matching(tenant, startDay, endDay, filter)
	total := decimal.Zero
	for _, e := range matched {
		total = total.Add(e.Amount)
	}
	return len(matched), total, nil
}

func (l *testLedger) DeleteMatching(ctx context.Context, tenant models.Tenant, startDay, endDay time.Time, filter repository.ExpenseFilter) (int, error) {
	matched := l.matching(tenant, startDay, endDay, filter)
	ids := make([]int64, 0, len(matched))
	for _, e := range matched {
		ids = append(ids, e.ID)
	}
	return l.Delete(ctx, tenant, ids)
}

func (l *testLedger) Categories(_ context.Context, tenant models.Tenant) ([]repository.CategoryUsage, error) {
	var out []repository.CategoryUsage
	for _, e := range l.expenses {
		if e.Tenant() == tenant {
			out = append(out, repository.CategoryUsage{Category: e.Category, Currency: e.Currency, Total: e.Amount, Count: 1})
		}
	}
	return out, nil
}

// testBudgets is a minimal in-memory budget and override store.
type testBudgets struct {
	budgets   map[string]*models.BudgetBase
	overrides map[string]*models.DailyOverride
}

func newTestBudgets() *testBudgets {
	return &testBudgets{
		budgets:   make(map[string]*models.BudgetBase),
		overrides: make(map[string]*models.DailyOverride),
	}
}

func (b *testBudgets) Get(_ context.Context, tenant models.Tenant, category, currency string) (*models.BudgetBase, error) {
	return b.budgets[fmt.Sprintf("%d|%d|%s|%s", tenant.ChatID, tenant.UserID, category, currency)], nil
}

func (b *testBudgets) Upsert(_ context.Context, budget *models.BudgetBase) error {
	key := fmt.Sprintf("%d|%d|%s|%s", budget.ChatID, budget.UserID, budget.Category, budget.Currency)
	b.budgets[key] = budget
	return nil
}

func (b *testBudgets) List(_ context.Context, _ models.Tenant) ([]models.BudgetBase, error) {
	return nil, nil
}

func (b *testBudgets) GetOverride(_ context.Context, tenant models.Tenant, category, currency string, day time.Time) (*models.DailyOverride, error) {
	return b.overrides[fmt.Sprintf("%d|%d|%s|%s|%s", tenant.ChatID, tenant.UserID, category, currency, day.Format(models.DayFormat))], nil
}

func (b *testBudgets) CreateOverride(_ context.Context, o *models.DailyOverride) (bool, error) {
	key := fmt.Sprintf("%d|%d|%s|%s|%s", o.ChatID, o.UserID, o.Category, o.Currency, o.Day.Format(models.DayFormat))
	if _, exists := b.overrides[key]; exists {
		return false, nil
	}
	b.overrides[key] = o
	return true, nil
}

type overrideAdapter struct{ b *testBudgets }

func (a overrideAdapter) Get(ctx context.Context, tenant models.Tenant, category, currency string, day time.Time) (*models.DailyOverride, error) {
	return a.b.GetOverride(ctx, tenant, category, currency, day)
}

func (a overrideAdapter) Create(ctx context.Context, o *models.DailyOverride) (bool, error) {
	return a.b.CreateOverride(ctx, o)
}

// testPendings is a single-slot pending store.
type testPendings struct {
	pending *models.PendingAction
}

func (p *testPendings) Get(_ context.Context, tenant models.Tenant) (*models.PendingAction, error) {
	if p.pending == nil || p.pending.ChatID != tenant.ChatID || p.pending.UserID != tenant.UserID {
		return nil, nil
	}
	cp := *p.pending
	return &cp, nil
}

func (p *testPendings) Set(_ context.Context, pending *models.PendingAction) error {
	pending.CreatedAt = time.Now()
	p.pending = pending
	return nil
}

func (p *testPendings) Clear(_ context.Context, _ models.Tenant) error {
	p.pending = nil
	return nil
}

// testConversations is an in-memory memory.Store.
type testConversations struct {
	states map[string]*models.ConversationState
}

func newTestConversations() *testConversations {
	return &testConversations{states: make(map[string]*models.ConversationState)}
}

func (c *testConversations) Get(_ context.Context, tenant models.Tenant) (*models.ConversationState, error) {
	state := c.states[fmt.Sprintf("%d|%d", tenant.ChatID, tenant.UserID)]
	if state == nil {
		return &models.ConversationState{ChatID: tenant.ChatID, UserID: tenant.UserID}, nil
	}
	return state, nil
}

func (c *testConversations) Save(_ context.Context, state *models.ConversationState) error {
	c.states[fmt.Sprintf("%d|%d", state.ChatID, state.UserID)] = state
	return nil
}

// testBot bundles a Bot over in-memory stores with its fakes exposed.
type testBot struct {
	bot           *Bot
	ledger        *testLedger
	pendings      *testPendings
	conversations *testConversations
	interpreter   *stubInterpreter
	composer      *stubComposer
}

// newTestBot wires a Bot with stub interpreter and composer and in-memory
// storage. The composer fails by default so replies are the deterministic
// fact rendering, which tests can assert on.
func newTestBot(t *testing.T) *testBot {
	t.Helper()

	cfg := &config.Config{
		DefaultCurrency: "UZS",
		Location:        time.UTC,
		PendingTTL:      10 * time.Minute,
		HistoryWindow:   10,
		SummaryMaxChars: 600,
	}

	tb := &testBot{
		ledger:        &testLedger{},
		pendings:      &testPendings{},
		conversations: newTestConversations(),
		interpreter:   &stubInterpreter{},
		composer:      &stubComposer{err: fmt.Errorf("composer disabled in tests")},
	}

	budgets := newTestBudgets()
	limits := carryover.New(budgets, overrideAdapter{budgets}, tb.ledger)

	tb.bot = &Bot{
		cfg:       cfg,
		username:  "hamyonbot",
		planner:   planner.New(tb.interpreter, cfg.DefaultCurrency, cfg.Location),
		executor:  executor.New(tb.ledger, budgets, tb.pendings, limits, cfg.Location, cfg.PendingTTL),
		responder: responder.New(tb.composer),
		memory:    memory.New(tb.conversations, cfg.HistoryWindow, cfg.SummaryMaxChars),
	}
	return tb
}

// textUpdate builds a private-chat text update.
func textUpdate(chatID, userID int64, text string) *tgmodels.Update {
	return &tgmodels.Update{
		Message: &tgmodels.Message{
			Chat: tgmodels.Chat{ID: chatID, Type: tgmodels.ChatTypePrivate},
			From: &tgmodels.User{ID: userID, Username: "tester"},
			Text: text,
		},
	}
}

// groupTextUpdate builds a group-chat text update.
func groupTextUpdate(chatID, userID int64, text string) *tgmodels.Update {
	u := textUpdate(chatID, userID, text)
	u.Message.Chat.Type = tgmodels.ChatTypeGroup
	return u
}

package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

type fakeInterpreter struct {
	plan    *gemini.RawPlan
	err     error
	lastReq gemini.PlanRequest
}

func (f *fakeInterpreter) GeneratePlan(_ context.Context, req gemini.PlanRequest) (*gemini.RawPlan, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

func newTestPlanner(interp Interpreter) *Planner {
	p := New(interp, "UZS", time.UTC)
	p.now = func() time.Time { return time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC) }
	return p
}

func TestPlan(t *testing.T) {
	t.Parallel()

	tenant := models.Tenant{ChatID: 1, UserID: 2}

	t.Run("valid plan produces validated actions", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{
			Kind: "plan",
			Actions: []gemini.RawAction{
				{Type: "add_expense", Amount: "35000", Category: "coffee"},
			},
		}}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "coffee 35000", nil)
		require.False(t, plan.IsClarify())
		require.Len(t, plan.Actions, 1)
		require.Empty(t, plan.Actions[0].Invalid)
		require.Equal(t, "coffee", plan.Actions[0].Category)
		require.Equal(t, "UZS", plan.Actions[0].Currency)
	})

	t.Run("interpreter failure degrades to clarification", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{err: errors.New("api down")}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "coffee 35000", nil)
		require.True(t, plan.IsClarify())
		require.Equal(t, FallbackClarification, plan.Clarify)
	})

	t.Run("clarify kind surfaces the question", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{
			Kind:    "clarify",
			Clarify: "How much was it?",
		}}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "bought stuff", nil)
		require.True(t, plan.IsClarify())
		require.Equal(t, "How much was it?", plan.Clarify)
	})

	t.Run("clarify kind with empty question falls back", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{Kind: "clarify"}}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "???", nil)
		require.Equal(t, FallbackClarification, plan.Clarify)
	})

	t.Run("empty action list falls back", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{Kind: "plan"}}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "hello", nil)
		require.True(t, plan.IsClarify())
	})

	t.Run("unknown kind falls back", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{Kind: "banana"}}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "hello", nil)
		require.True(t, plan.IsClarify())
	})

	t.Run("invalid action travels through the batch", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{
			Kind: "plan",
			Actions: []gemini.RawAction{
				{Type: "add_expense", Amount: "12000", Category: "taxi"},
				{Type: "add_expense", Amount: "lots"},
			},
		}}
		p := newTestPlanner(interp)

		plan := p.Plan(context.Background(), tenant, "taxi 12000 and some more", nil)
		require.Len(t, plan.Actions, 2)
		require.Empty(t, plan.Actions[0].Invalid)
		require.NotEmpty(t, plan.Actions[1].Invalid)
	})

	t.Run("passes conversation context to the interpreter", func(t *testing.T) {
		t.Parallel()
		interp := &fakeInterpreter{plan: &gemini.RawPlan{
			Kind:    "plan",
			Actions: []gemini.RawAction{{Type: "get_categories"}},
		}}
		p := newTestPlanner(interp)

		state := &models.ConversationState{
			Summary: "logs coffee daily",
			Turns:   []models.Turn{{Role: models.RoleUser, Content: "hi"}},
		}
		p.Plan(context.Background(), tenant, "what categories do I have", state)

		require.Equal(t, "logs coffee daily", interp.lastReq.Summary)
		require.Len(t, interp.lastReq.History, 1)
		require.Equal(t, "2026-08-28", interp.lastReq.Today)
		require.Equal(t, "UZS", interp.lastReq.DefaultCurrency)
	})
}

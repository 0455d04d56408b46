// Package responder turns the executor's structured results into the final
// chat reply and the updated rolling summary, delegating phrasing to the
// external interpreter with a deterministic fallback.
package responder

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/bekzodm/hamyon-bot/internal/executor"
	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// Interpreter is the external phrasing service.
type Interpreter interface {
	ComposeReply(ctx context.Context, req gemini.ReplyRequest) (*gemini.ReplyResponse, error)
}

// Responder composes replies.
type Responder struct {
	interpreter Interpreter
}

// New creates a Responder.
func New(interpreter Interpreter) *Responder {
	return &Responder{interpreter: interpreter}
}

// Respond renders the batch into authoritative facts, asks the interpreter
// to phrase them, and falls back to the deterministic rendering when the
// interpreter fails. The user always receives an ordinary chat reply.
func (r *Responder) Respond(
	ctx context.Context,
	tenant models.Tenant,
	utterance string,
	results []executor.Result,
	state *models.ConversationState,
) (reply, summary string) {
	facts := RenderFacts(results)

	req := gemini.ReplyRequest{
		Utterance: utterance,
		Facts:     facts,
	}
	if state != nil {
		req.Summary = state.Summary
		req.History = state.Turns
	}

	resp, err := r.interpreter.ComposeReply(ctx, req)
	if err != nil {
		logger.Log.Warn().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Reply composition failed, using deterministic rendering")
		return facts, fallbackSummary(req.Summary, utterance, results)
	}

	return resp.Reply, resp.Summary
}

// RenderFacts produces the deterministic, human-readable rendering of a
// result batch. It doubles as the LLM grounding text and as the fallback
// reply, so it must surface every figure the user cares about: remaining
// daily/monthly budgets, low-budget warnings and carryover reasons.
func RenderFacts(results []executor.Result) string {
	var sb strings.Builder

	for i, result := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		renderResult(&sb, &result)
	}

	if sb.Len() == 0 {
		sb.WriteString("Nothing to report.")
	}
	return sb.String()
}

func renderResult(sb *strings.Builder, result *executor.Result) {
	if !result.OK() {
		if result.Retryable {
			sb.WriteString("❌ One action could not be completed right now, please try again.")
			return
		}
		fmt.Fprintf(sb, "❌ Skipped one action: %s.", result.Err)
		return
	}

	switch {
	case result.Expense != nil:
		exp := result.Expense
		fmt.Fprintf(sb, "✅ Recorded: %s %s %s (%s)",
			exp.Category, exp.Amount.String(), exp.Currency, exp.SpentDay.Format(models.DayFormat))
		if exp.Note != "" {
			fmt.Fprintf(sb, " — %s", exp.Note)
		}
		renderBudgetStatus(sb, "today", result.Daily, exp.Currency)
		renderBudgetStatus(sb, "this month", result.Monthly, exp.Currency)
		if result.Daily == nil && result.Monthly == nil {
			sb.WriteString("\nNo budget is set for this category.")
		}

	case result.Budget != nil:
		b := result.Budget
		fmt.Fprintf(sb, "✅ Budget for %s (%s):", b.Category, b.Currency)
		if b.HasDaily() {
			fmt.Fprintf(sb, " daily %s", b.DailyLimit.String())
		}
		if b.HasMonthly() {
			fmt.Fprintf(sb, " monthly %s", b.MonthlyLimit.String())
		}

	case result.Confirm != nil:
		c := result.Confirm
		fmt.Fprintf(sb, "⚠️ This would delete %d expense(s) totalling %s between %s and %s",
			c.Count, c.Total.String(),
			c.StartDay.Format(models.DayFormat), c.EndDay.Format(models.DayFormat))
		if c.Category != "" {
			fmt.Fprintf(sb, " in %s", c.Category)
		}
		sb.WriteString(". Reply \"yes\" to confirm or \"no\" to cancel.")

	case result.Cancelled:
		sb.WriteString("Okay, nothing was deleted.")

	case result.NothingMatched:
		sb.WriteString("No matching expenses were found, nothing was deleted.")

	case result.Action.Type == "delete_expense":
		fmt.Fprintf(sb, "🗑️ Deleted %d expense(s).", result.Deleted)
		if result.DeletedExpense != nil {
			exp := result.DeletedExpense
			fmt.Fprintf(sb, " Last entry was %s %s %s.", exp.Category, exp.Amount.String(), exp.Currency)
		}

	case result.Categories != nil:
		sb.WriteString("📁 Categories:")
		for _, usage := range result.Categories {
			fmt.Fprintf(sb, "\n• %s: %s %s (%d entries)",
				usage.Category, usage.Total.String(), usage.Currency, usage.Count)
		}

	case result.Action.Type == "get_stats":
		fmt.Fprintf(sb, "📊 Spending %s — %s:",
			result.StartDay.Format(models.DayFormat), result.EndDay.Format(models.DayFormat))
		if len(result.Breakdown) == 0 {
			sb.WriteString(" no expenses in this period.")
			break
		}
		for _, row := range result.Breakdown {
			fmt.Fprintf(sb, "\n• %s", row.Category)
			if row.Subcategory != "" {
				fmt.Fprintf(sb, "/%s", row.Subcategory)
			}
			fmt.Fprintf(sb, ": %s %s", row.Amount.String(), row.Currency)
		}

	case result.Action.Type == "get_history":
		fmt.Fprintf(sb, "🧾 Expenses %s — %s:",
			result.StartDay.Format(models.DayFormat), result.EndDay.Format(models.DayFormat))
		if len(result.History) == 0 {
			sb.WriteString(" none found.")
			break
		}
		for _, exp := range result.History {
			fmt.Fprintf(sb, "\n• #%d %s: %s %s %s",
				exp.ID, exp.SpentDay.Format(models.DayFormat), exp.Category, exp.Amount.String(), exp.Currency)
			if exp.Note != "" {
				fmt.Fprintf(sb, " — %s", exp.Note)
			}
		}

	default:
		sb.WriteString("Done.")
	}
}

func renderBudgetStatus(sb *strings.Builder, period string, status *executor.BudgetStatus, currency string) {
	if status == nil {
		return
	}
	fmt.Fprintf(sb, "\nBudget %s: %s of %s %s left",
		period, status.Left.String(), status.Limit.String(), currency)
	if status.CarryReason != "" {
		fmt.Fprintf(sb, " (%s)", status.CarryReason)
	}
	if status.Low {
		sb.WriteString("\n⚠️ Budget is running low!")
	}
}

// fallbackSummary keeps the rolling summary alive when the interpreter is
// unavailable; the memory layer enforces the length cap.
func fallbackSummary(previous, utterance string, results []executor.Result) string {
	outcome := "handled a request"
	for _, result := range results {
		switch {
		case result.Expense != nil:
			outcome = fmt.Sprintf("recorded %s %s for %s",
				result.Expense.Amount.String(), result.Expense.Currency, result.Expense.Category)
		case result.Budget != nil:
			outcome = fmt.Sprintf("set a budget for %s", result.Budget.Category)
		case result.Deleted > 0:
			outcome = fmt.Sprintf("deleted %d expense(s)", result.Deleted)
		}
	}

	clause := fmt.Sprintf("User said %q; assistant %s.", utterance, outcome)
	if previous == "" {
		return clause
	}
	return previous + " " + clause
}

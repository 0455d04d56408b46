package planner

import (
	"context"
	"strings"
	"time"

	"gitlab.com/bekzodm/hamyon-bot/internal/gemini"
	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
)

// FallbackClarification is used whenever the interpreter is unreachable or
// its output cannot be parsed into the schema at all. The planner never
// silently invents an action.
const FallbackClarification = "Sorry, I didn't quite catch that. Could you rephrase? For example: \"coffee 35000\" or \"set a daily budget of 50000 for food\"."

// Interpreter is the external free-text interpretation service.
type Interpreter interface {
	GeneratePlan(ctx context.Context, req gemini.PlanRequest) (*gemini.RawPlan, error)
}

// Planner converts an utterance plus conversation context into a validated
// Plan or a single clarifying question.
type Planner struct {
	interpreter     Interpreter
	defaultCurrency string
	location        *time.Location

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Planner.
func New(interpreter Interpreter, defaultCurrency string, location *time.Location) *Planner {
	return &Planner{
		interpreter:     interpreter,
		defaultCurrency: defaultCurrency,
		location:        location,
		now:             time.Now,
	}
}

// Plan translates the utterance. Interpretation failures always degrade to a
// clarification, never to a guessed mutation and never to an error the user
// would see raw.
func (p *Planner) Plan(
	ctx context.Context,
	tenant models.Tenant,
	utterance string,
	state *models.ConversationState,
) *Plan {
	today := models.DayOf(p.now(), p.location)

	req := gemini.PlanRequest{
		Utterance:       utterance,
		Today:           today.Format(models.DayFormat),
		DefaultCurrency: p.defaultCurrency,
	}
	if state != nil {
		req.Summary = state.Summary
		req.History = state.Turns
	}

	raw, err := p.interpreter.GeneratePlan(ctx, req)
	if err != nil {
		logger.Log.Warn().Err(err).
			Str("tenant", logger.HashTenant(tenant.ChatID, tenant.UserID)).
			Msg("Interpreter failed, degrading to clarification")
		return &Plan{Clarify: FallbackClarification}
	}

	switch raw.Kind {
	case "clarify":
		question := strings.TrimSpace(raw.Clarify)
		if question == "" {
			question = FallbackClarification
		}
		return &Plan{Clarify: question}

	case "plan":
		if len(raw.Actions) == 0 {
			return &Plan{Clarify: FallbackClarification}
		}
		actions := make([]Action, 0, len(raw.Actions))
		for _, rawAction := range raw.Actions {
			actions = append(actions, validateAction(rawAction, p.defaultCurrency, today))
		}
		return &Plan{Actions: actions}

	default:
		logger.Log.Warn().
			Str("kind", raw.Kind).
			Msg("Interpreter returned unknown plan kind")
		return &Plan{Clarify: FallbackClarification}
	}
}

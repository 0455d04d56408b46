package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/bekzodm/hamyon-bot/internal/logger"
	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"google.golang.org/genai"
)

// PlanTimeout bounds a plan-extraction call.
const PlanTimeout = 20 * time.Second

// ErrInterpreterTimeout indicates a Gemini call exceeded its deadline.
var ErrInterpreterTimeout = errors.New("interpreter call timed out")

// Action type names the interpreter may emit.
var ActionTypes = []string{
	"add_expense",
	"set_budget",
	"get_history",
	"get_categories",
	"get_stats",
	"delete_expense",
}

// PlanRequest carries everything the interpreter needs to translate one
// utterance: the text itself plus the tenant's bounded conversation context.
type PlanRequest struct {
	Utterance       string
	Summary         string
	History         []models.Turn
	Today           string // ISO date in the bot's timezone
	DefaultCurrency string
}

// RawAction mirrors one action object of the interpreter's JSON. All fields
// are untrusted strings until the planner validates them.
type RawAction struct {
	Type         string  `json:"type"`
	Amount       string  `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Category     string  `json:"category,omitempty"`
	Subcategory  string  `json:"subcategory,omitempty"`
	Note         string  `json:"note,omitempty"`
	Date         string  `json:"date,omitempty"`
	StartDate    string  `json:"start_date,omitempty"`
	EndDate      string  `json:"end_date,omitempty"`
	DailyLimit   string  `json:"daily_limit,omitempty"`
	MonthlyLimit string  `json:"monthly_limit,omitempty"`
	DeleteMode   string  `json:"delete_mode,omitempty"`
	ExpenseIDs   []int64 `json:"expense_ids,omitempty"`
}

// RawPlan is the tagged variant the interpreter returns: either a list of
// actions or a single clarifying question.
type RawPlan struct {
	Kind    string      `json:"kind"` // "plan" | "clarify"
	Clarify string      `json:"clarify,omitempty"`
	Actions []RawAction `json:"actions,omitempty"`
}

// GeneratePlan asks Gemini to translate the utterance into a RawPlan.
// The response is parsed but not semantically validated; that is the
// planner's job.
func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) (*RawPlan, error) {
	if c.generator == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, PlanTimeout)
	defer cancel()

	contents := historyContents(req.History)
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildPlanPrompt(req)}},
	})

	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(1000),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API translating personal-finance chat messages into structured actions. Respond with ONLY a single valid JSON object, no preamble."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   planSchema(),
	}

	resp, err := c.generator.GenerateContent(timeoutCtx, ModelName, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrInterpreterTimeout
		}
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}

	jsonText := extractJSON(resp.Text())
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var plan RawPlan
	if err := json.Unmarshal([]byte(jsonText), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan response: %w", err)
	}

	logger.Log.Debug().
		Str("kind", plan.Kind).
		Int("actions", len(plan.Actions)).
		Msg("Interpreter returned plan")

	return &plan, nil
}

func planSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"kind": {
				Type:        genai.TypeString,
				Enum:        []string{"plan", "clarify"},
				Description: "Whether actions could be derived or a clarifying question is needed",
			},
			"clarify": {
				Type:        genai.TypeString,
				Description: "One short clarifying question when kind is clarify",
			},
			"actions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type":          {Type: genai.TypeString, Enum: ActionTypes},
						"amount":        {Type: genai.TypeString, Description: "Decimal number as a string, e.g. \"35000\""},
						"currency":      {Type: genai.TypeString, Description: "ISO currency code"},
						"category":      {Type: genai.TypeString, Description: "Short lowercase token, e.g. \"coffee\""},
						"subcategory":   {Type: genai.TypeString},
						"note":          {Type: genai.TypeString},
						"date":          {Type: genai.TypeString, Description: "YYYY-MM-DD"},
						"start_date":    {Type: genai.TypeString, Description: "YYYY-MM-DD"},
						"end_date":      {Type: genai.TypeString, Description: "YYYY-MM-DD"},
						"daily_limit":   {Type: genai.TypeString, Description: "Decimal number as a string"},
						"monthly_limit": {Type: genai.TypeString, Description: "Decimal number as a string"},
						"delete_mode":   {Type: genai.TypeString, Enum: []string{"by_id", "last", "filter"}},
						"expense_ids":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeInteger}},
					},
					Required: []string{"type"},
				},
			},
		},
		Required: []string{"kind"},
	}
}

func buildPlanPrompt(req PlanRequest) string {
	var sb strings.Builder

	sb.WriteString("Translate the user's message into finance actions.\n\n")
	fmt.Fprintf(&sb, "Today is %s. The default currency is %s.\n", req.Today, req.DefaultCurrency)
	sb.WriteString(`Rules:
- amount, daily_limit and monthly_limit are decimal strings, never words.
- category is one short lowercase token (e.g. "coffee", "transport"); use "other" only when nothing fits.
- Use the default currency when the message names none.
- Dates are YYYY-MM-DD; resolve relative phrases ("yesterday", "this month") against today.
- "add_expense" records spending; "set_budget" sets limits; "get_history", "get_categories" and "get_stats" are read-only; "delete_expense" removes entries (delete_mode one of by_id, last, filter).
- If the message cannot be safely translated, return kind "clarify" with ONE short question. Never invent amounts.
`)

	if req.Summary != "" {
		fmt.Fprintf(&sb, "\nConversation summary: %s\n", SanitizeForPrompt(req.Summary, 800))
	}

	fmt.Fprintf(&sb, "\nUser message: \"%s\"\n", SanitizeForPrompt(req.Utterance, MaxUtteranceLength))

	return sb.String()
}

// historyContents converts the bounded turn window into Gemini contents.
func historyContents(history []models.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: SanitizeForPrompt(turn.Content, MaxUtteranceLength)}},
		})
	}
	return contents
}

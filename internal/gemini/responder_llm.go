package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/bekzodm/hamyon-bot/internal/models"
	"google.golang.org/genai"
)

// ReplyTimeout bounds a reply-composition call.
const ReplyTimeout = 15 * time.Second

// ReplyRequest carries the executor's structured facts plus conversation
// context for final phrasing.
type ReplyRequest struct {
	Utterance string
	Facts     string // deterministic rendering of the executor's results
	Summary   string
	History   []models.Turn
}

// ReplyResponse is the interpreter's final-reply variant: the message to
// send plus the updated rolling summary.
type ReplyResponse struct {
	Reply   string `json:"reply"`
	Summary string `json:"summary"`
}

// ComposeReply asks Gemini to phrase the executor's results conversationally
// and to refresh the rolling summary. The facts are authoritative: the model
// is instructed to restate them, not to recompute.
func (c *Client) ComposeReply(ctx context.Context, req ReplyRequest) (*ReplyResponse, error) {
	if c.generator == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ReplyTimeout)
	defer cancel()

	contents := historyContents(req.History)
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildReplyPrompt(req)}},
	})

	temp := float32(0.7)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(800),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a friendly personal-finance assistant in a group chat. Respond with ONLY a single valid JSON object, no preamble."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"reply": {
					Type:        genai.TypeString,
					Description: "The chat reply, short and conversational, restating every fact",
				},
				"summary": {
					Type:        genai.TypeString,
					Description: "Updated rolling conversation summary, at most a few sentences",
				},
			},
			Required: []string{"reply", "summary"},
		},
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

	var reply ReplyResponse
	if err := json.Unmarshal([]byte(jsonText), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse reply response: %w", err)
	}

	if strings.TrimSpace(reply.Reply) == "" {
		return nil, fmt.Errorf("empty reply from interpreter")
	}

	return &reply, nil
}

func buildReplyPrompt(req ReplyRequest) string {
	var sb strings.Builder

	sb.WriteString("Compose the assistant's next chat message from these results.\n\n")
	sb.WriteString("Results (authoritative, restate the numbers exactly, do not recompute):\n")
	sb.WriteString(req.Facts)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Always mention remaining daily/monthly budget figures when present.\n")
	sb.WriteString("- Always mention a low-budget warning when flagged.\n")
	sb.WriteString("- Always mention a carryover reason when one is given.\n")
	sb.WriteString("- Mention failed actions conversationally alongside successful ones.\n")
	sb.WriteString("- Reply in the user's language.\n")

	if req.Summary != "" {
		fmt.Fprintf(&sb, "\nPrevious summary: %s\n", SanitizeForPrompt(req.Summary, 800))
	}
	fmt.Fprintf(&sb, "\nThe user had written: \"%s\"\n", SanitizeForPrompt(req.Utterance, MaxUtteranceLength))

	return sb.String()
}

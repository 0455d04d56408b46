package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// ParseReceiptTimeout is the timeout for receipt extraction calls.
const ParseReceiptTimeout = 30 * time.Second

// ErrParseTimeout indicates the Gemini call timed out.
var ErrParseTimeout = errors.New("receipt parsing timed out")

// ErrUnrecognized indicates no usable expense could be extracted from the
// image.
var ErrUnrecognized = errors.New("no usable expense recognized in receipt")

// ReceiptData is the add_expense-shaped result of receipt extraction.
type ReceiptData struct {
	Amount     decimal.Decimal
	Currency   string
	Category   string
	Note       string
	Confidence float64
}

// receiptResponse is the JSON structure returned by Gemini.
type receiptResponse struct {
	Amount     string  `json:"amount"`
	Currency   string  `json:"currency"`
	Category   string  `json:"category"`
	Note       string  `json:"note"`
	Confidence float64 `json:"confidence"`
}

// ParseReceipt extracts an expense from a receipt image. A missing or zero
// amount counts as unrecognized; the caller falls back to asking for text.
func (c *Client) ParseReceipt(
	ctx context.Context,
	imageBytes []byte,
	mimeType string,
	defaultCurrency string,
) (*ReceiptData, error) {
	if c.generator == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("image data is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ParseReceiptTimeout)
	defer cancel()

	resp, err := c.generator.GenerateContent(timeoutCtx, ModelName, []*genai.Content{
		{
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageBytes}},
				{Text: buildReceiptPrompt(defaultCurrency)},
			},
		},
	}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrParseTimeout
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}

	var textContent string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			textContent += part.Text
		}
	}

	if textContent == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	data, err := parseReceiptResponse(textContent, defaultCurrency)
	if err != nil {
		return nil, err
	}

	if data.Amount.IsZero() {
		return nil, ErrUnrecognized
	}

	return data, nil
}

func buildReceiptPrompt(defaultCurrency string) string {
	return fmt.Sprintf(`Analyze this receipt or payment screenshot and extract the expense.
Return ONLY a JSON object with no additional text or markdown formatting.

Required fields:
- amount: the total paid (decimal string, e.g. "35000"); prefer lines like total, итого, к оплате, jami
- currency: ISO code; use %q when the receipt does not name one
- category: one short lowercase token describing the purchase, e.g. "groceries", "taxi"
- note: merchant name or a short description
- confidence: extraction confidence between 0.0 and 1.0

If a field cannot be determined, use an empty string, or "0" for amount.

Example response:
{"amount": "35000", "currency": "UZS", "category": "taxi", "note": "Yandex Go", "confidence": 0.92}`, defaultCurrency)
}

func parseReceiptResponse(response, defaultCurrency string) (*ReceiptData, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var rr receiptResponse
	if err := json.Unmarshal([]byte(response), &rr); err != nil {
		return nil, fmt.Errorf("failed to parse receipt response: %w", err)
	}

	data := &ReceiptData{
		Currency:   strings.ToUpper(strings.TrimSpace(rr.Currency)),
		Category:   strings.ToLower(strings.TrimSpace(rr.Category)),
		Note:       strings.TrimSpace(rr.Note),
		Confidence: rr.Confidence,
	}
	if data.Currency == "" {
		data.Currency = defaultCurrency
	}
	if data.Category == "" {
		data.Category = "other"
	}

	if rr.Amount != "" && rr.Amount != "0" {
		amount, err := decimal.NewFromString(rr.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", rr.Amount, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("negative amount %q in receipt", rr.Amount)
		}
		data.Amount = amount
	}

	return data, nil
}

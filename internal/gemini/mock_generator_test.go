package gemini

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// mockGenerator implements ContentGenerator for tests, recording the last
// call and returning a canned response.
type mockGenerator struct {
	mu sync.Mutex

	response *genai.GenerateContentResponse
	err      error

	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
	calls        int
}

func (m *mockGenerator) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastModel = model
	m.lastContents = contents
	m.lastConfig = config

	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

// textResponse wraps raw text in a single-candidate Gemini response.
func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: text},
					},
				},
			},
		},
	}
}

// Package classify turns extracted message text into a raw transaction
// classification using the Gemini API.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"google.golang.org/genai"

	"github.com/Wimboro/finmail/internal/ledger"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.0-flash"

// Gemini classifies message text with a Gemini model call.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a classifier backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("classify: missing Gemini API key")
	}
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Classify sends the extracted text to the model and decodes its response.
// Backend and decode errors alike mean this one message failed to classify;
// the caller skips it without aborting the batch.
func (g *Gemini) Classify(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: BuildPrompt(text, today)},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("classify: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("classify: empty response from model")
	}
	return Decode(raw)
}

// Decode strips any markdown fencing from the model response and parses the
// remainder as a single JSON object.
func Decode(raw string) (*ledger.RawClassification, error) {
	clean := stripFences(raw)
	if !strings.HasPrefix(clean, "{") {
		return nil, fmt.Errorf("classify: response is not a JSON object: %.80q", clean)
	}
	var rc ledger.RawClassification
	if err := json.Unmarshal([]byte(clean), &rc); err != nil {
		return nil, fmt.Errorf("classify: decode response: %w", err)
	}
	return &rc, nil
}

// stripFences removes a leading ```json or bare ``` fence and its closing
// fence, then keeps only the outermost {...} if junk remains around it.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// A top-level array is already a malformed response; slicing out an
	// embedded object would mask that, so only prose is unwrapped here.
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		if start := strings.Index(s, "{"); start != -1 {
			if end := strings.LastIndex(s, "}"); end > start {
				s = strings.TrimSpace(s[start : end+1])
			}
		}
	}
	return s
}

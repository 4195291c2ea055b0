package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	gglegacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GroundedGeminiProvider implements Provider over the legacy generative-ai-go
// SDK, which carries the Google Search grounding toolchain. Used for stages
// whose configuration sets the google_search option; everything else goes
// through GeminiProvider.
type GroundedGeminiProvider struct {
	Model string
}

var _ Provider = (*GroundedGeminiProvider)(nil)

func (p *GroundedGeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if val, ok := options["api_key"].(string); ok && val != "" {
		apiKey = val
	}
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := gglegacy.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	modelName := p.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash-exp"
	}
	if val, ok := options["model"].(string); ok && val != "" {
		modelName = val
	}

	model := client.GenerativeModel(modelName)
	if val, ok := options["temperature"].(float64); ok {
		model.SetTemperature(float32(val))
	} else {
		model.SetTemperature(0.7)
	}

	fullPrompt := prompt
	if systemPrompt != "" {
		fullPrompt = fmt.Sprintf("%s\n\nTask: %s", systemPrompt, prompt)
	}

	resp, err := model.GenerateContent(ctx, gglegacy.Text(fullPrompt))
	if err != nil {
		return "", upstreamError("gemini-grounded", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini-grounded: empty completion", ErrUpstream)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(gglegacy.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

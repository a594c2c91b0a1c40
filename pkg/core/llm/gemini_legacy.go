package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLegacyProvider uses the older generative-ai-go SDK. Kept for deployments
// still pinned to that client; behavior matches GeminiProvider for text output.
type GeminiLegacyProvider struct {
	Model string
}

var _ Provider = (*GeminiLegacyProvider)(nil)

func (p *GeminiLegacyProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %v", err)
	}
	defer client.Close()

	modelName := p.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if val, ok := options["model"].(string); ok && val != "" {
		modelName = val
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		if val["type"] == "json_object" {
			model.ResponseMIMEType = "application/json"
		}
	}

	// The legacy SDK has no separate system slot worth relying on; prepend.
	fullPrompt := prompt
	if systemPrompt != "" {
		fullPrompt = fmt.Sprintf("%s\n\nTask: %s", systemPrompt, prompt)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

func (p *GeminiLegacyProvider) AdaptInstructions(raw string) string {
	return raw
}

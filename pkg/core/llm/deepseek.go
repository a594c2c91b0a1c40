package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DeepSeekProvider talks to the DeepSeek chat completions API directly over HTTP.
type DeepSeekProvider struct {
	Model string // e.g. "deepseek-chat"
}

var _ Provider = (*DeepSeekProvider)(nil)

type deepSeekRequest struct {
	Messages       []Message      `json:"messages"`
	Model          string         `json:"model"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Stream         bool           `json:"stream"`
	Temperature    float64        `json:"temperature"`
	TopP           float64        `json:"top_p"`
}

type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type deepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *DeepSeekProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if val, ok := options["api_key"].(string); ok && val != "" {
		apiKey = val
	}
	if apiKey == "" {
		return "", fmt.Errorf("DEEPSEEK_API_KEY_MISSING: Please set DEEPSEEK_API_KEY env var")
	}

	model := p.Model
	if model == "" {
		model = "deepseek-chat"
	}
	if val, ok := options["model"].(string); ok && val != "" {
		model = val
	}

	responseType := "text"
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		if val["type"] == "json_object" {
			responseType = "json_object"
		}
	}

	url := "https://api.deepseek.com/chat/completions"

	reqBody := deepSeekRequest{
		Messages: []Message{
			{Content: systemPrompt, Role: "system"},
			{Content: prompt, Role: "user"},
		},
		Model:          model,
		MaxTokens:      4096,
		ResponseFormat: ResponseFormat{Type: responseType},
		Stream:         false,
		Temperature:    0,
		TopP:           1.0,
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_MARSHAL_ERROR: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_REQ_CREATE_ERROR: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_API_CALL_ERROR: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_READ_BODY_ERROR: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("DEEPSEEK_API_ERROR: status=%d found=%s", res.StatusCode, string(body))
	}

	var response deepSeekResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("DEEPSEEK_UNMARSHAL_ERROR: %v", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("DEEPSEEK_NO_CHOICES: %s", string(body))
	}

	return response.Choices[0].Message.Content, nil
}

func (p *DeepSeekProvider) AdaptInstructions(raw string) string {
	return raw
}

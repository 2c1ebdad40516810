package llm

import (
	"context"
	"net/http"

	"github.com/Harshitk-cp/psychograph/internal/domain"
)

const (
	cerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel  = "llama-3.3-70b"
)

// CerebrasClient speaks the OpenAI-compatible chat format.
type CerebrasClient struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewCerebrasClient(apiKey string) *CerebrasClient {
	return &CerebrasClient{
		apiKey:     apiKey,
		url:        cerebrasAPIURL,
		model:      cerebrasModel,
		httpClient: &http.Client{},
	}
}

func (c *CerebrasClient) Model() string {
	return "cerebras/" + c.model
}

func (c *CerebrasClient) InvokeModel(ctx context.Context, prompt string, schema *domain.OutputSchema) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(schema)},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	}
	return completeChat(ctx, c.httpClient, "cerebras", c.url, c.apiKey, req)
}

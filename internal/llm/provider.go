package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/psychograph/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

type providerFactory struct {
	keyEnv string
	build  func(apiKey string) domain.LLMClient
}

var providers = map[string]providerFactory{
	ProviderOpenAI:    {"OPENAI_API_KEY", func(k string) domain.LLMClient { return NewOpenAIClient(k) }},
	ProviderAnthropic: {"ANTHROPIC_API_KEY", func(k string) domain.LLMClient { return NewAnthropicClient(k) }},
	ProviderGemini:    {"GEMINI_API_KEY", func(k string) domain.LLMClient { return NewGeminiClient(k) }},
	ProviderCerebras:  {"CEREBRAS_API_KEY", func(k string) domain.LLMClient { return NewCerebrasClient(k) }},
	ProviderMock:      {"", func(string) domain.LLMClient { return NewMockClient() }},
}

// Providers lists the accepted LLM_PROVIDER values.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates an LLM client based on the provider name.
// Every provider except mock requires an API key.
func NewClient(provider, apiKey string) (domain.LLMClient, error) {
	f, ok := providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: %s)", provider, strings.Join(Providers(), ", "))
	}
	if f.keyEnv != "" && apiKey == "" {
		return nil, fmt.Errorf("%s is required for %s provider", f.keyEnv, provider)
	}
	return f.build(apiKey), nil
}

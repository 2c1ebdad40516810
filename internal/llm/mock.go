package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
)

// MockResponse is the canned answer used by the mock provider.
const MockResponse = `{"risk_profile":{"value":"moderate","confidence":0.8},"cognitive_style":{"value":"balanced","confidence":0.75},"emotional_state":{"mood":{"value":"neutral","confidence":0.7}},"motivations":["value_seeking"],"reasoning":"Mixed browsing and purchase signals without strong urgency."}`

// MockClient is a configurable LLM client for testing and local runs.
// Errors, when set, is consumed one entry per call before falling back to
// Err and Response.
type MockClient struct {
	Response string
	Err      error
	Errors   []error
	Delay    time.Duration
	ModelTag string

	calls   atomic.Int64
	mu      sync.Mutex
	prompts []string
}

func NewMockClient() *MockClient {
	return &MockClient{Response: MockResponse, ModelTag: "mock/mock-1"}
}

func (m *MockClient) Model() string {
	return m.ModelTag
}

func (m *MockClient) InvokeModel(ctx context.Context, prompt string, schema *domain.OutputSchema) (string, error) {
	m.calls.Add(1)

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	var next error
	if len(m.Errors) > 0 {
		next = m.Errors[0]
		m.Errors = m.Errors[1:]
	}
	m.mu.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if next != nil {
		return "", next
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns how many times InvokeModel was entered.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

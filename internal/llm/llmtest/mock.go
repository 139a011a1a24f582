// Package llmtest provides test doubles for llm.Client.
package llmtest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jonathan/teamforge/internal/llm"
)

// MockClient implements llm.Client for testing.
// CompleteFunc is called when set; otherwise Complete returns DefaultResponse.
type MockClient struct {
	CompleteFunc    func(ctx context.Context, systemPrompt, userPrompt string, tier llm.ModelTier) (string, error)
	DefaultResponse string

	mu    sync.Mutex
	calls []Call
}

// Call records one Complete invocation.
type Call struct {
	SystemPrompt string
	UserPrompt   string
	Tier         llm.ModelTier
}

// Complete records the call and delegates to CompleteFunc.
func (m *MockClient) Complete(ctx context.Context, systemPrompt, userPrompt string, tier llm.ModelTier) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Tier: tier})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt, tier)
	}
	return m.DefaultResponse, nil
}

// GetModel returns a fixed model name.
func (m *MockClient) GetModel(_ llm.ModelTier) string {
	return "mock-model"
}

// Close is a no-op.
func (m *MockClient) Close() error {
	return nil
}

// Calls returns a snapshot of the recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Route answers each call with the response of the longest key contained in the
// user prompt. Unmatched prompts get fallback.
func Route(routes map[string]string, fallback string) func(context.Context, string, string, llm.ModelTier) (string, error) {
	keys := make([]string, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return func(_ context.Context, _, userPrompt string, _ llm.ModelTier) (string, error) {
		for _, key := range keys {
			if strings.Contains(userPrompt, key) {
				return routes[key], nil
			}
		}
		return fallback, nil
	}
}

package llm

import (
	"context"
	"sync"
)

// Fake is a scriptable Client for tests. Responses are consumed in order;
// once exhausted it returns a single empty text response. Safe for
// concurrent use so it can back a worker pool in tests.
type Fake struct {
	Responses []Response
	Calls     []FakeCall

	mu   sync.Mutex
	next int
}

// FakeCall records one CreateMessage invocation for assertions.
type FakeCall struct {
	Messages     []Message
	Tools        []ToolSchema
	SystemPrompt string
}

func (f *Fake) CreateMessage(_ context.Context, messages []Message, tools []ToolSchema, systemPrompt string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FakeCall{Messages: messages, Tools: tools, SystemPrompt: systemPrompt})

	if f.next >= len(f.Responses) {
		return &Response{}, nil
	}
	r := f.Responses[f.next]
	f.next++
	return &r, nil
}

// Package llm defines the LLMClient capability contract (spec §6): the
// interface the rest of the orchestrator programs against, a
// SubprocessClient that implements it by running a CLI binary, and a
// scriptable fake for tests.
package llm

import "context"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in the conversation sent to CreateMessage.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolSchema describes a tool the model may invoke via a tool_use block.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// BlockType discriminates the union in Block.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockToolUse BlockType = "tool_use"
)

// Block is one piece of the model's response: either free text or a
// tool invocation request.
type Block struct {
	Type BlockType `json:"type"`

	// Text is set when Type == BlockText.
	Text string `json:"text,omitempty"`

	// Name and Input are set when Type == BlockToolUse.
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// Response is the completed model turn. Streaming, if the underlying
// client supports it, is not part of this contract — callers only see the
// finished response.
type Response struct {
	Content []Block `json:"content"`
}

// Text concatenates every text block in the response, in order. Most
// WorkerExecutor phases only need the plain-text reply, so this is the
// common accessor.
func (r *Response) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// Client is the capability interface every orchestrator component that
// talks to a model depends on.
type Client interface {
	CreateMessage(ctx context.Context, messages []Message, tools []ToolSchema, systemPrompt string) (*Response, error)
}

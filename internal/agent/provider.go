package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/steward/pkg/models"
)

// Stop reasons reported by providers at the end of a round.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopRefusal   = "refusal"
)

// SystemBlock is one system prompt document. Cache marks the block for
// provider-side prompt caching; only the leading block should carry it.
type SystemBlock struct {
	Text  string
	Cache bool
}

// ToolCall is a tool-use directive parsed from the model's output stream.
// Input arrives as raw JSON accumulated from input deltas.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultBlock feeds one tool's outcome back to the model, correlated by
// the tool-use id it answers.
type ToolResultBlock struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// CompletionMessage is one message in a provider request. Plain turns carry
// Content; the synthetic turns between rounds carry ToolCalls (assistant
// side) or ToolResults (user side).
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResultBlock
}

// CompletionRequest is a single LLM round.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	System    []SystemBlock
	Messages  []CompletionMessage
	Tools     []Tool
}

// CompletionChunk is one event from a streaming round. Providers emit text
// deltas as they arrive, each tool call once its input JSON is complete, the
// stop reason when known, and exactly one terminal chunk with Done set.
type CompletionChunk struct {
	Text       string
	ToolCall   *ToolCall
	StopReason string
	Err        error
	Done       bool
}

// LLMProvider is a streaming LLM backend. Complete returns immediately; the
// channel is closed after the terminal chunk.
type LLMProvider interface {
	Name() string
	SupportsTools() bool
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
}

// HistoryMessages converts a conversation history into provider messages.
func HistoryMessages(history []models.ChatMessage) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		out = append(out, CompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

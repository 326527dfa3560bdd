// Package agent implements the assistant's runtime core: the tool registry
// that catalogues what the model may do, and the turn loop that drives
// streaming LLM rounds, tool dispatch, and confirmation suspension until a
// user turn settles into final text.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is an external effect the model can invoke. Implementations are
// immutable after registration; the registry owns lookup and dispatch.
type Tool interface {
	// Name is the process-wide identifier the model uses to call the tool.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Category groups tools for display and policy ("scheduling", "files").
	Category() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool with validated arguments. Failures are reported
	// through the ToolResult error envelope, never by panicking.
	Execute(ctx context.Context, args map[string]any) *ToolResult
}

// ConfirmationEnricher is implemented by tools whose confirmation prompt
// should show more than the raw arguments. The loop calls it before asking
// the user, so the prompt can name the thing being acted on instead of an
// opaque id.
type ConfirmationEnricher interface {
	EnrichConfirmation(ctx context.Context, call *PendingToolCall)
}

// ToolHandler is the handler signature for function-registered tools.
type ToolHandler func(ctx context.Context, args map[string]any) *ToolResult

// ToolFunc adapts a plain handler plus its declared metadata into a Tool.
// It is the registration form for tools that don't warrant a named type.
type ToolFunc struct {
	ToolName        string
	ToolDescription string
	ToolCategory    string
	ToolSchema      json.RawMessage
	Handler         ToolHandler
}

func (t *ToolFunc) Name() string            { return t.ToolName }
func (t *ToolFunc) Description() string     { return t.ToolDescription }
func (t *ToolFunc) Category() string        { return t.ToolCategory }
func (t *ToolFunc) Schema() json.RawMessage { return t.ToolSchema }

func (t *ToolFunc) Execute(ctx context.Context, args map[string]any) *ToolResult {
	if t.Handler == nil {
		return ErrorResult("tool %q has no handler", t.ToolName)
	}
	return t.Handler(ctx, args)
}

// ToolResult is the uniform envelope every tool execution produces. Exactly
// one of Data or Err is populated; Err empty means success.
type ToolResult struct {
	Data map[string]any `json:"data,omitempty"`
	Err  string         `json:"error,omitempty"`
}

// DataResult wraps a successful payload.
func DataResult(data map[string]any) *ToolResult {
	if data == nil {
		data = map[string]any{}
	}
	return &ToolResult{Data: data}
}

// ErrorResult builds a failed result. The format string keeps call sites
// terse; arguments are optional.
func ErrorResult(format string, args ...any) *ToolResult {
	if len(args) == 0 {
		return &ToolResult{Err: format}
	}
	return &ToolResult{Err: fmt.Sprintf(format, args...)}
}

// OK reports whether the execution succeeded.
func (r *ToolResult) OK() bool {
	return r != nil && r.Err == ""
}

// LLMContent renders the result as the JSON string fed back to the model.
func (r *ToolResult) LLMContent() string {
	if r == nil {
		return `{"error":"no result"}`
	}
	var payload any
	if r.OK() {
		payload = r.Data
	} else {
		payload = map[string]string{"error": r.Err}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "unserialisable tool result: "+err.Error())
	}
	return string(b)
}

// PendingToolCall is a parsed tool-use directive that has not been dispatched
// yet. ID is the provider's tool-use id and must be echoed back with the
// result so the model can correlate them.
type PendingToolCall struct {
	ID   string
	Name string
	Args map[string]any

	// Description is the human-readable summary shown in confirmation
	// prompts. Enrichers may rewrite it before the user sees it.
	Description string
}

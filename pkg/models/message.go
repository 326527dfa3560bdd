// Package models defines the shared data types passed between the agent
// runtime, transports, and outbound channels.
package models

// Message roles for conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single entry in a conversation history: who said it and
// what was said. Tool-use plumbing inside a turn never reaches this type;
// histories only ever hold the user/assistant text exchange.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-role history entry.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role history entry.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// Button is one inline keyboard button rendered by an outbound channel.
// Exactly one of CallbackData or URL should be set; channels that cannot
// render link buttons may fall back to appending the URL to the text.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// ButtonRow is one row of an inline keyboard; a keyboard is a row-major
// slice of rows.
type ButtonRow []Button

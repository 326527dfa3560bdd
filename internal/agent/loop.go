package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/steward/pkg/models"
)

// roundLimitNotice is appended to the accumulated text when a turn exhausts
// its round budget.
const roundLimitNotice = "\n\n(I hit my tool-use limit for this request; the reply above may be incomplete.)"

// contentFilterNotice is the recovery text when the model's output is blocked
// mid-stream. Whatever text was already streamed is kept in front of it.
const contentFilterNotice = "I wasn't able to finish that response. Could you rephrase the request?"

// contentFiltered is implemented by provider errors whose cause is a safety
// or content-policy block. The loop recovers from those instead of failing
// the turn.
type contentFiltered interface {
	ContentFiltered() bool
}

// LoopConfig configures the turn loop.
type LoopConfig struct {
	// MaxRounds limits LLM rounds per turn. Default: 10.
	MaxRounds int

	// MaxTokens is the per-round response budget. Default: 4096.
	MaxTokens int

	// System is the assembled system prompt, in order. The first block
	// should be the large static document so providers can cache it.
	System []SystemBlock

	// DefaultModel is used when a turn does not override the model.
	DefaultModel string

	// Logger for loop events.
	Logger *slog.Logger
}

func (c *LoopConfig) validate() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 10
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("component", "turn-loop")
	}
}

// ConfirmFunc asks the user to approve a pending tool call. It blocks until
// the user decides or the broker times out; false means the tool must not
// run.
type ConfirmFunc func(ctx context.Context, call *PendingToolCall) bool

// GenerateOptions are the per-turn knobs.
type GenerateOptions struct {
	// OnTextDelta receives streamed text as it arrives. It must be fast and
	// non-blocking; transports coalesce internally.
	OnTextDelta func(text string)

	// OnConfirm suspends the turn for user approval of a tool that the
	// policy marks as requiring confirmation. When nil, such tools run
	// without asking. Unattended callers (the scheduler) leave it nil.
	OnConfirm ConfirmFunc

	// MessageContext carries the turn's routing identity into tool handlers.
	MessageContext *models.MessageContext

	// Model overrides the configured default for this turn.
	Model string
}

// Loop drives a user turn: stream an LLM round, dispatch any tool calls it
// emits, feed the results into the next round, and repeat until the model
// stops asking for tools.
type Loop struct {
	provider LLMProvider
	registry *Registry
	config   LoopConfig
}

// NewLoop creates a turn loop over the given provider and registry.
func NewLoop(provider LLMProvider, registry *Registry, config LoopConfig) *Loop {
	config.validate()
	if registry == nil {
		registry = NewRegistry()
	}
	return &Loop{provider: provider, registry: registry, config: config}
}

// roundOutcome is what one streamed round produced.
type roundOutcome struct {
	text       string
	toolCalls  []ToolCall
	stopReason string
}

// GenerateResponse runs one complete turn and returns the final text.
//
// Text streamed in a round whose tools required confirmation is retracted
// from the returned result: the user already saw it live, but the stored
// reply must be grounded in what the tools actually did, which the next
// round reports. Tool failures never fail the turn; they flow back to the
// model as error results.
func (l *Loop) GenerateResponse(ctx context.Context, history []models.ChatMessage, opts *GenerateOptions) (string, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}
	if l.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}

	model := opts.Model
	if model == "" {
		model = l.config.DefaultModel
	}
	if opts.MessageContext != nil {
		ctx = models.WithMessageContext(ctx, opts.MessageContext)
	}

	messages := HistoryMessages(history)
	var final strings.Builder

	for round := 0; round < l.config.MaxRounds; round++ {
		outcome, err := l.streamRound(ctx, model, messages, opts.OnTextDelta)
		if err != nil {
			if isContentFiltered(err) {
				l.config.Logger.Warn("round blocked by content filter", "round", round)
				if outcome != nil {
					final.WriteString(outcome.text)
				}
				final.WriteString(contentFilterNotice)
				return final.String(), nil
			}
			return "", err
		}
		if outcome.stopReason == StopRefusal {
			final.WriteString(outcome.text)
			final.WriteString(contentFilterNotice)
			return final.String(), nil
		}

		if len(outcome.toolCalls) == 0 {
			final.WriteString(outcome.text)
			return final.String(), nil
		}

		results, confirmed := l.dispatchTools(ctx, outcome.toolCalls, opts.OnConfirm)

		// Retraction: text streamed alongside a confirmation-gated tool may
		// claim an outcome that never happened. The next round, grounded in
		// the real results, produces the authoritative text.
		if !confirmed {
			final.WriteString(outcome.text)
		}

		messages = append(messages,
			CompletionMessage{
				Role:      models.RoleAssistant,
				Content:   outcome.text,
				ToolCalls: outcome.toolCalls,
			},
			CompletionMessage{
				Role:        models.RoleUser,
				ToolResults: results,
			},
		)
	}

	l.config.Logger.Warn("turn exhausted round budget", "max_rounds", l.config.MaxRounds)
	final.WriteString(roundLimitNotice)
	return final.String(), nil
}

// streamRound runs one LLM round, forwarding text deltas as they arrive.
func (l *Loop) streamRound(ctx context.Context, model string, messages []CompletionMessage, onDelta func(string)) (*roundOutcome, error) {
	req := &CompletionRequest{
		Model:     model,
		MaxTokens: l.config.MaxTokens,
		System:    l.config.System,
		Messages:  messages,
		Tools:     l.registry.Tools(),
	}

	chunks, err := l.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open LLM round: %w", err)
	}

	outcome := &roundOutcome{}
	var text strings.Builder
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Err != nil {
			outcome.text = text.String()
			return outcome, chunk.Err
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if onDelta != nil {
				onDelta(chunk.Text)
			}
		}
		if chunk.ToolCall != nil {
			outcome.toolCalls = append(outcome.toolCalls, *chunk.ToolCall)
		}
		if chunk.StopReason != "" {
			outcome.stopReason = chunk.StopReason
		}
	}

	select {
	case <-ctx.Done():
		outcome.text = text.String()
		return outcome, ctx.Err()
	default:
	}

	outcome.text = text.String()
	return outcome, nil
}

// dispatchTools executes a round's tool calls sequentially, in the order the
// model emitted them. It reports whether any of them was confirmation-gated,
// which drives the retraction rule.
func (l *Loop) dispatchTools(ctx context.Context, calls []ToolCall, onConfirm ConfirmFunc) ([]ToolResultBlock, bool) {
	results := make([]ToolResultBlock, 0, len(calls))
	anyConfirmed := false

	for i := range calls {
		call := &calls[i]
		result := l.dispatchOne(ctx, call, onConfirm, &anyConfirmed)
		results = append(results, ToolResultBlock{
			ToolCallID: call.ID,
			Content:    result.LLMContent(),
			IsError:    !result.OK(),
		})
	}
	return results, anyConfirmed
}

func (l *Loop) dispatchOne(ctx context.Context, call *ToolCall, onConfirm ConfirmFunc, anyConfirmed *bool) *ToolResult {
	args, err := decodeArgs(call.Input)
	if err != nil {
		return ErrorResult("arguments are not valid JSON: %v", err)
	}

	pending := &PendingToolCall{
		ID:          call.ID,
		Name:        call.Name,
		Args:        args,
		Description: describeCall(call.Name, args),
	}

	if l.registry.RequiresConfirmation(call.Name) && onConfirm != nil {
		*anyConfirmed = true

		// Let the tool rewrite the prompt with the state it is about to
		// change, so the user approves "Cancel 'water reminder'" rather
		// than an opaque id.
		if tool, ok := l.registry.Get(call.Name); ok {
			if enricher, ok := tool.(ConfirmationEnricher); ok {
				enricher.EnrichConfirmation(ctx, pending)
			}
		}

		if !onConfirm(ctx, pending) {
			l.config.Logger.Info("tool call denied", "tool", call.Name, "tool_use_id", call.ID)
			return ErrorResult("user denied")
		}
	}

	return l.registry.Execute(ctx, call.Name, args)
}

func decodeArgs(input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// describeCall is the fallback human summary for a tool call: the name plus
// its arguments, truncated. Confirmation prompts start from this and per-tool
// formatters improve on it.
func describeCall(name string, args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil || string(b) == "{}" {
		return name
	}
	const maxArgs = 200
	s := string(b)
	if len(s) > maxArgs {
		s = s[:maxArgs] + "…"
	}
	return name + " " + s
}

func isContentFiltered(err error) bool {
	for err != nil {
		if cf, ok := err.(contentFiltered); ok && cf.ContentFiltered() {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

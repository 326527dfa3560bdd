package providers

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/internal/agent/toolconv"
)

// OpenAIProvider streams completions from the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	base         BaseProvider
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if strings.TrimSpace(config.BaseURL) != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		defaultModel: config.DefaultModel,
		base:         NewBaseProvider("openai", config.MaxRetries, config.RetryDelay),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportsTools() bool { return true }

func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	model := p.getModel(req.Model)

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: p.convertMessages(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toolconv.ToOpenAITools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	err := p.base.Retry(ctx, IsRetryable, func() error {
		var openErr error
		stream, openErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if openErr != nil {
			return p.wrapError(openErr, model)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

// processStream reads the SSE stream and converts it to completion chunks.
// OpenAI streams tool calls as fragments keyed by index; the ID and name
// arrive first and the argument JSON trickles in across later deltas.
func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*agent.ToolCall)
	toolArgs := make(map[int]*strings.Builder)
	var stopReason string

	flushToolCalls := func() {
		for i := 0; i < len(toolCalls); i++ {
			tc, ok := toolCalls[i]
			if !ok || tc.ID == "" || tc.Name == "" {
				continue
			}
			tc.Input = normalizeToolInput(toolArgs[i].String())
			chunks <- &agent.CompletionChunk{ToolCall: tc}
		}
		toolCalls = make(map[int]*agent.ToolCall)
		toolArgs = make(map[int]*strings.Builder)
	}

	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Err: ctx.Err(), Done: true}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushToolCalls()
				chunks <- &agent.CompletionChunk{StopReason: stopReason, Done: true}
				return
			}
			chunks <- &agent.CompletionChunk{Err: p.wrapError(err, model), Done: true}
			return
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.Delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &agent.ToolCall{}
				toolArgs[index] = &strings.Builder{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolArgs[index].WriteString(tc.Function.Arguments)
			}
		}

		switch choice.FinishReason {
		case openai.FinishReasonToolCalls:
			stopReason = agent.StopToolUse
			flushToolCalls()
		case openai.FinishReasonStop:
			stopReason = agent.StopEndTurn
		case openai.FinishReasonLength:
			stopReason = agent.StopMaxTokens
		case openai.FinishReasonContentFilter:
			chunks <- &agent.CompletionChunk{
				Err: &ProviderError{
					Provider: "openai",
					Model:    model,
					Reason:   FailoverContentFilter,
					Message:  "output blocked by content filter",
				},
				Done: true,
			}
			return
		}
	}
}

// convertMessages maps internal messages to the chat format. The system
// prompt becomes the leading system message; tool results each become their
// own tool-role message correlated by tool call id.
func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system []agent.SystemBlock) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if text := joinSystemBlocks(system); text != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: text,
		})
	}

	for _, msg := range messages {
		for _, tr := range msg.ToolResults {
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    tr.Content,
				ToolCallID: tr.ToolCallID,
			})
		}

		if msg.Content == "" && len(msg.ToolCalls) == 0 {
			continue
		}

		converted := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(normalizeToolInput(string(tc.Input))),
				},
			})
		}
		result = append(result, converted)
	}

	return result
}

func (p *OpenAIProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := &ProviderError{
			Provider: "openai",
			Model:    model,
			Cause:    err,
			Reason:   FailoverUnknown,
			Message:  apiErr.Message,
		}
		providerErr = providerErr.WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			providerErr = providerErr.WithCode(code)
		}
		return providerErr
	}

	return NewProviderError("openai", model, err)
}

func joinSystemBlocks(blocks []agent.SystemBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

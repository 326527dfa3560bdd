// Package confirm implements the human approval gate for sensitive tool
// calls. The broker renders a prompt with approve/deny buttons through the
// transport that carried the turn, suspends the calling goroutine, and
// resolves when the user answers or the prompt times out.
package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/pkg/models"
)

// DefaultTimeout is how long a prompt waits before it is abandoned.
const DefaultTimeout = 120 * time.Second

// callbackPrefix namespaces confirmation button payloads.
const callbackPrefix = "cfm"

// PromptHandle identifies a rendered prompt so the broker can edit it later.
type PromptHandle struct {
	ChatID    string
	MessageID string
}

// PromptRenderer is the transport-side surface for confirmation prompts.
// Each transport that can host a confirmation registers one.
type PromptRenderer interface {
	RenderPrompt(ctx context.Context, mc *models.MessageContext, text string, buttons []models.ButtonRow) (PromptHandle, error)
	EditPrompt(ctx context.Context, mc *models.MessageContext, handle PromptHandle, text string) error
}

type pendingRequest struct {
	decision chan bool
	resolved bool
}

// Config configures a Broker.
type Config struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Broker correlates confirmation prompts with the turns waiting on them.
type Broker struct {
	mu        sync.Mutex
	pending   map[string]*pendingRequest
	renderers map[string]PromptRenderer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewBroker creates a broker.
func NewBroker(cfg Config) *Broker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Broker{
		pending:   make(map[string]*pendingRequest),
		renderers: make(map[string]PromptRenderer),
		timeout:   cfg.Timeout,
		logger:    cfg.Logger.With("component", "confirm"),
	}
}

// RegisterRenderer binds a transport name to its prompt renderer.
func (b *Broker) RegisterRenderer(transport string, renderer PromptRenderer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.renderers[transport] = renderer
}

// NewID returns a fresh 8-hex confirmation id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ApproveData and DenyData build the button payloads for a confirmation id.
func ApproveData(id string) string { return fmt.Sprintf("%s:%s:y", callbackPrefix, id) }
func DenyData(id string) string    { return fmt.Sprintf("%s:%s:n", callbackPrefix, id) }

// ParseCallback decodes a button payload. ok is false for payloads that are
// not confirmation callbacks.
func ParseCallback(data string) (id string, approved bool, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return "", false, false
	}
	switch parts[2] {
	case "y":
		return parts[1], true, true
	case "n":
		return parts[1], false, true
	default:
		return "", false, false
	}
}

// RequestConfirmation renders a prompt for the pending call and blocks until
// the user decides, the context ends, or the timeout fires. Anything but an
// explicit approval returns false.
func (b *Broker) RequestConfirmation(ctx context.Context, mc *models.MessageContext, call *agent.PendingToolCall) bool {
	if mc == nil {
		b.logger.Warn("confirmation requested without message context", "tool", call.Name)
		return false
	}
	renderer := b.rendererFor(mc)
	if renderer == nil {
		b.logger.Warn("no prompt renderer for transport", "transport", mc.ReplyTransport, "tool", call.Name)
		return false
	}

	id := NewID()
	req := &pendingRequest{decision: make(chan bool, 1)}
	b.mu.Lock()
	b.pending[id] = req
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	text := "Please confirm:\n\n" + Summarize(call)
	buttons := []models.ButtonRow{{
		{Text: "Approve", CallbackData: ApproveData(id)},
		{Text: "Deny", CallbackData: DenyData(id)},
	}}

	handle, err := renderer.RenderPrompt(ctx, mc, text, buttons)
	if err != nil {
		b.logger.Error("confirmation prompt failed", "tool", call.Name, "error", err)
		return false
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case approved := <-req.decision:
		return approved
	case <-ctx.Done():
		return false
	case <-timer.C:
		b.logger.Info("confirmation timed out", "tool", call.Name, "id", id)
		if err := renderer.EditPrompt(ctx, mc, handle, text+"\n\n(timed out)"); err != nil {
			b.logger.Warn("timeout prompt edit failed", "id", id, "error", err)
		}
		return false
	}
}

// Resolve delivers the user's decision. The first resolution wins; repeats
// and unknown ids return false so the transport can tell the user the prompt
// is no longer live.
func (b *Broker) Resolve(id string, approved bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.pending[id]
	if !ok || req.resolved {
		return false
	}
	req.resolved = true
	req.decision <- approved
	return true
}

func (b *Broker) rendererFor(mc *models.MessageContext) PromptRenderer {
	transport := mc.ReplyTransport
	if transport == "" {
		transport = mc.Transport
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renderers[transport]
}

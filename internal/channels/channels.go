// Package channels defines the contracts between chat transports and the
// runtime, plus the rate limiting and stream coalescing they share. A
// transport listens for inbound traffic; its outbound half registers with the
// notification router as a channel.
package channels

import (
	"context"

	"github.com/haasonsaas/steward/pkg/models"
)

// Handler is the runtime-side surface a transport delivers traffic to.
type Handler interface {
	// HandleMessage runs one user turn and returns the final reply text.
	// onDelta receives streamed text for transports that render drafts;
	// transports that cannot edit messages pass nil.
	HandleMessage(ctx context.Context, mc *models.MessageContext, text string, onDelta func(string)) (string, error)

	// HandleCallback routes a button payload (confirmation or missed-task).
	// When edit is non-empty the transport replaces the prompt message's
	// text with it.
	HandleCallback(ctx context.Context, mc *models.MessageContext, data string) (edit string, handled bool)
}

// Transport is an inbound listener with a lifecycle.
type Transport interface {
	// Name is the transport identifier used in MessageContext routing.
	Name() string

	// Start begins listening. It returns once listening is established;
	// delivery happens on background goroutines until Stop.
	Start(ctx context.Context) error

	// Stop shuts the listener down, waiting for in-flight handlers.
	Stop(ctx context.Context) error
}

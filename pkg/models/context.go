package models

import "context"

// MessageContext carries the routing identity of one user turn through every
// asynchronous boundary: which user spoke, on which transport, and where
// replies should go. It is created by the inbound transport handler and
// borrowed read-only by everything downstream.
type MessageContext struct {
	// UserID identifies the user on the source transport.
	UserID string `json:"user_id"`

	// Transport is the name of the transport the message arrived on.
	Transport string `json:"transport"`

	// ReplyTransport is where replies go. Defaults to Transport.
	ReplyTransport string `json:"reply_transport,omitempty"`

	// ConversationID keys the session history. Defaults to UserID, which
	// makes direct chats and SMS-style transports work without extra state.
	ConversationID string `json:"conversation_id,omitempty"`

	// Metadata carries transport-specific extras (message ids, thread ids).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Normalize fills the defaulted fields in place and returns the context for
// chaining. Safe to call repeatedly.
func (mc *MessageContext) Normalize() *MessageContext {
	if mc.ReplyTransport == "" {
		mc.ReplyTransport = mc.Transport
	}
	if mc.ConversationID == "" {
		mc.ConversationID = mc.UserID
	}
	return mc
}

// Clone returns a copy with its own metadata map, for handing to code that
// must not observe later mutations.
func (mc *MessageContext) Clone() *MessageContext {
	if mc == nil {
		return nil
	}
	cp := *mc
	if mc.Metadata != nil {
		cp.Metadata = make(map[string]string, len(mc.Metadata))
		for k, v := range mc.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

type messageContextKey struct{}

// WithMessageContext returns a context carrying mc. Tool handlers retrieve it
// with MessageContextFrom when they need to know who asked.
func WithMessageContext(ctx context.Context, mc *MessageContext) context.Context {
	return context.WithValue(ctx, messageContextKey{}, mc)
}

// MessageContextFrom extracts the turn's routing identity, if any.
func MessageContextFrom(ctx context.Context) (*MessageContext, bool) {
	mc, ok := ctx.Value(messageContextKey{}).(*MessageContext)
	return mc, ok && mc != nil
}

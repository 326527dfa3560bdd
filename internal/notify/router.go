// Package notify routes outbound notifications to whichever chat channel can
// deliver them. Callers name a channel, fall back to the configured default,
// and degrade gracefully when a channel lacks a capability. Delivery failures
// are logged and reported as false; the router never panics and never returns
// an error to interrupt the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/haasonsaas/steward/pkg/models"
)

// Channel is an outbound delivery target. Implementations wrap one chat
// transport's send path.
type Channel interface {
	Name() string
	Send(ctx context.Context, user, text string) error
}

// RichSender is implemented by channels that can attach inline buttons.
type RichSender interface {
	SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow) error
}

// PhotoSender is implemented by channels that can deliver images.
type PhotoSender interface {
	SendPhoto(ctx context.Context, user string, photo []byte, caption string) error
}

// Router fans notifications out to registered channels.
type Router struct {
	mu          sync.RWMutex
	channels    map[string]Channel
	defaultName string
	logger      *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		channels: make(map[string]Channel),
		logger:   logger.With("component", "notify"),
	}
}

// Register adds a channel. A channel with the same name replaces the
// previous registration.
func (r *Router) Register(ch Channel) {
	if ch == nil || ch.Name() == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[ch.Name()]; exists {
		r.logger.Warn("replacing notification channel", "channel", ch.Name())
	}
	r.channels[ch.Name()] = ch
}

// SetDefault names the channel used when callers do not specify one.
func (r *Router) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// Channel looks up a registered channel by name.
func (r *Router) Channel(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// resolve picks the delivery channel: the explicit name, then the default,
// then the sole registered channel.
func (r *Router) resolve(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		ch, ok := r.channels[name]
		if !ok {
			r.logger.Warn("notification channel not registered", "channel", name)
		}
		return ch, ok
	}
	if r.defaultName != "" {
		if ch, ok := r.channels[r.defaultName]; ok {
			return ch, true
		}
		r.logger.Warn("default notification channel not registered", "channel", r.defaultName)
	}
	if len(r.channels) == 1 {
		for _, ch := range r.channels {
			return ch, true
		}
	}
	r.logger.Warn("no notification channel resolvable", "registered", len(r.channels))
	return nil, false
}

// Send delivers plain text. Returns true only when a channel accepted the
// message.
func (r *Router) Send(ctx context.Context, user, text, channel string) bool {
	ch, ok := r.resolve(channel)
	if !ok {
		return false
	}
	if err := ch.Send(ctx, user, text); err != nil {
		r.logger.Error("notification send failed", "channel", ch.Name(), "user", user, "error", err)
		return false
	}
	return true
}

// SendRich delivers text with inline buttons. Channels without button support
// cause a false return rather than a degraded send; callers that can settle
// for plain text use Send.
func (r *Router) SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow, channel string) bool {
	ch, ok := r.resolve(channel)
	if !ok {
		return false
	}
	rich, ok := ch.(RichSender)
	if !ok {
		r.logger.Warn("channel cannot send buttons", "channel", ch.Name())
		return false
	}
	if err := rich.SendRich(ctx, user, text, buttons); err != nil {
		r.logger.Error("rich notification failed", "channel", ch.Name(), "user", user, "error", err)
		return false
	}
	return true
}

// SendPhoto delivers an image with an optional caption.
func (r *Router) SendPhoto(ctx context.Context, user string, photo []byte, caption, channel string) bool {
	ch, ok := r.resolve(channel)
	if !ok {
		return false
	}
	sender, ok := ch.(PhotoSender)
	if !ok {
		r.logger.Warn("channel cannot send photos", "channel", ch.Name())
		return false
	}
	if err := sender.SendPhoto(ctx, user, photo, caption); err != nil {
		r.logger.Error("photo notification failed", "channel", ch.Name(), "user", user, "error", err)
		return false
	}
	return true
}

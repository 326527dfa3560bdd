// Package matrix is a text-only outbound notification channel. Its lack of
// button support exercises the router's capability miss path.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ChannelName is the router registration name.
const ChannelName = "matrix"

// Config holds the Matrix channel configuration.
type Config struct {
	// Homeserver is the base URL, e.g. "https://matrix.org".
	Homeserver string

	// UserID is the full Matrix user id, e.g. "@steward:matrix.org".
	UserID string

	// AccessToken authenticates the client.
	AccessToken string

	Logger *slog.Logger
}

// Channel sends plain text into Matrix rooms.
type Channel struct {
	client *mautrix.Client
	logger *slog.Logger
}

func NewChannel(config Config) (*Channel, error) {
	if config.Homeserver == "" || config.UserID == "" || config.AccessToken == "" {
		return nil, errors.New("matrix: homeserver, user_id, and access_token are required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	return &Channel{
		client: client,
		logger: logger.With("channel", ChannelName),
	}, nil
}

func (c *Channel) Name() string { return ChannelName }

// Send posts plain text. user is a room id.
func (c *Channel) Send(ctx context.Context, user, text string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(user), event.EventMessage, content); err != nil {
		return fmt.Errorf("matrix: send to %s: %w", user, err)
	}
	return nil
}

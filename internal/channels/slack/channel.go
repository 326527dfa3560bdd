// Package slack is an outbound notification channel. It has no inbound
// loop; confirmations must arrive on a transport that can listen.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/haasonsaas/steward/pkg/models"
)

// ChannelName is the router registration name.
const ChannelName = "slack"

// Config holds the Slack channel configuration.
type Config struct {
	// Token is a bot token with chat:write and files:write scopes.
	Token string

	Logger *slog.Logger
}

// Channel sends notifications through the Slack Web API.
type Channel struct {
	client *slack.Client
	logger *slog.Logger
}

func NewChannel(config Config) (*Channel, error) {
	if config.Token == "" {
		return nil, errors.New("slack: token is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		client: slack.New(config.Token),
		logger: logger.With("channel", ChannelName),
	}, nil
}

func (c *Channel) Name() string { return ChannelName }

// Send posts plain text. user is a Slack channel or DM id.
func (c *Channel) Send(ctx context.Context, user, text string) error {
	_, _, err := c.client.PostMessageContext(ctx, user,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// SendRich posts text with Block Kit buttons. Button presses land on the
// Slack app's interaction endpoint, which this channel does not listen on;
// only URL buttons are actionable here.
func (c *Channel) SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow) error {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
	for _, row := range buttons {
		elements := make([]slack.BlockElement, 0, len(row))
		for _, button := range row {
			label := slack.NewTextBlockObject(slack.PlainTextType, button.Text, false, false)
			element := slack.NewButtonBlockElement(button.CallbackData, button.CallbackData, label)
			if button.URL != "" {
				element.URL = button.URL
			}
			elements = append(elements, element)
		}
		blocks = append(blocks, slack.NewActionBlock("", elements...))
	}

	_, _, err := c.client.PostMessageContext(ctx, user,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("slack: post rich message: %w", err)
	}
	return nil
}

// SendPhoto uploads an image with an optional caption.
func (c *Channel) SendPhoto(ctx context.Context, user string, photo []byte, caption string) error {
	_, err := c.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:         bytes.NewReader(photo),
		Filename:       "photo.jpg",
		FileSize:       len(photo),
		Channel:        user,
		InitialComment: caption,
	})
	if err != nil {
		return fmt.Errorf("slack: upload photo: %w", err)
	}
	return nil
}

// Package mattermost is an outbound notification channel backed by the
// Mattermost REST API.
package mattermost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattermost/mattermost/server/public/model"
)

// ChannelName is the router registration name.
const ChannelName = "mattermost"

// Config holds the Mattermost channel configuration.
type Config struct {
	// ServerURL is the base URL, e.g. "https://chat.example.com".
	ServerURL string

	// Token is a bot or personal access token.
	Token string

	Logger *slog.Logger
}

// Channel posts notifications to Mattermost channels.
type Channel struct {
	client *model.Client4
	logger *slog.Logger
}

func NewChannel(config Config) (*Channel, error) {
	if config.ServerURL == "" {
		return nil, errors.New("mattermost: server_url is required")
	}
	if config.Token == "" {
		return nil, errors.New("mattermost: token is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := model.NewAPIv4Client(config.ServerURL)
	client.SetToken(config.Token)
	return &Channel{
		client: client,
		logger: logger.With("channel", ChannelName),
	}, nil
}

func (c *Channel) Name() string { return ChannelName }

// Send posts plain text. user is a Mattermost channel id.
func (c *Channel) Send(ctx context.Context, user, text string) error {
	post := &model.Post{
		ChannelId: user,
		Message:   text,
	}
	if _, _, err := c.client.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("mattermost: create post: %w", err)
	}
	return nil
}

// SendPhoto uploads an image and attaches it to a post carrying the caption.
func (c *Channel) SendPhoto(ctx context.Context, user string, photo []byte, caption string) error {
	upload, _, err := c.client.UploadFile(ctx, photo, user, "photo.jpg")
	if err != nil {
		return fmt.Errorf("mattermost: upload photo: %w", err)
	}
	fileIDs := make([]string, 0, len(upload.FileInfos))
	for _, info := range upload.FileInfos {
		fileIDs = append(fileIDs, info.Id)
	}

	post := &model.Post{
		ChannelId: user,
		Message:   caption,
		FileIds:   model.StringArray(fileIDs),
	}
	if _, _, err := c.client.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("mattermost: create photo post: %w", err)
	}
	return nil
}

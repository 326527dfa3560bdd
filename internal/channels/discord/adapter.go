// Package discord is a secondary transport: message-create inbound, button
// interactions for confirmation and missed-task prompts, and an outbound
// channel with full button support.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/steward/internal/channels"
	"github.com/haasonsaas/steward/internal/confirm"
	"github.com/haasonsaas/steward/pkg/models"
)

// TransportName is the routing identifier for this transport.
const TransportName = "discord"

// Config holds the Discord adapter configuration.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// AllowedUserIDs restricts who may talk to the assistant.
	AllowedUserIDs []string

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Token == "" {
		return errors.New("discord: token is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter connects Discord to the runtime handler.
type Adapter struct {
	config  Config
	handler channels.Handler
	session *discordgo.Session
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAdapter(config Config, handler channels.Handler) (*Adapter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	session, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	a := &Adapter{
		config:  config,
		handler: handler,
		session: session,
		logger:  config.Logger.With("transport", TransportName),
	}
	session.AddHandler(a.handleMessageCreate)
	session.AddHandler(a.handleInteractionCreate)
	return a, nil
}

func (a *Adapter) Name() string { return TransportName }

// Start opens the gateway connection.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.logger.Info("discord transport started")
	return nil
}

// Stop closes the gateway and waits for in-flight turns.
func (a *Adapter) Stop(ctx context.Context) error {
	err := a.session.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("discord: stop timed out: %w", ctx.Err())
	}

	if err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	a.logger.Info("discord transport stopped")
	return nil
}

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}
	if !a.allowed(m.Author.ID) {
		a.logger.Warn("message from unauthorized user", "user_id", m.Author.ID)
		return
	}

	mc := (&models.MessageContext{
		UserID:         m.Author.ID,
		Transport:      TransportName,
		ConversationID: m.ChannelID,
		Metadata: map[string]string{
			"message_id": m.ID,
		},
	}).Normalize()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// Discord throttles edits too aggressively for draft streaming;
		// the reply lands as one message.
		final, err := a.handler.HandleMessage(context.Background(), mc, m.Content, nil)
		if err != nil {
			a.logger.Error("turn failed", "channel_id", m.ChannelID, "error", err)
			final = "Something went wrong handling that. Please try again."
		}
		if final == "" {
			return
		}
		if _, err := s.ChannelMessageSend(m.ChannelID, final); err != nil {
			a.logger.Error("reply send failed", "channel_id", m.ChannelID, "error", err)
		}
	}()
}

func (a *Adapter) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	userID := interactionUserID(i)
	if !a.allowed(userID) {
		return
	}

	mc := (&models.MessageContext{
		UserID:         userID,
		Transport:      TransportName,
		ConversationID: i.ChannelID,
	}).Normalize()

	data := i.MessageComponentData().CustomID
	edit, handled := a.handler.HandleCallback(context.Background(), mc, data)
	if !handled {
		a.logger.Warn("unrecognized component payload", "data", data)
		return
	}

	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Components: []discordgo.MessageComponent{},
		},
	}
	if edit != "" {
		response.Data.Content = edit
	} else if i.Message != nil {
		response.Data.Content = i.Message.Content
	}
	if err := s.InteractionRespond(i.Interaction, response); err != nil {
		a.logger.Warn("interaction response failed", "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.User != nil {
		return i.User.ID
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	return ""
}

func (a *Adapter) allowed(userID string) bool {
	if len(a.config.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range a.config.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Send implements the plain-text outbound channel. user is a channel id.
func (a *Adapter) Send(ctx context.Context, user, text string) error {
	_, err := a.session.ChannelMessageSend(user, text)
	return err
}

// SendRich sends text with button components.
func (a *Adapter) SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow) error {
	_, err := a.session.ChannelMessageSendComplex(user, &discordgo.MessageSend{
		Content:    text,
		Components: components(buttons),
	})
	return err
}

// SendPhoto uploads an image with an optional caption.
func (a *Adapter) SendPhoto(ctx context.Context, user string, photo []byte, caption string) error {
	_, err := a.session.ChannelMessageSendComplex(user, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{{
			Name:        "photo.jpg",
			ContentType: "image/jpeg",
			Reader:      bytes.NewReader(photo),
		}},
	})
	return err
}

// RenderPrompt implements confirm.PromptRenderer.
func (a *Adapter) RenderPrompt(ctx context.Context, mc *models.MessageContext, text string, buttons []models.ButtonRow) (confirm.PromptHandle, error) {
	sent, err := a.session.ChannelMessageSendComplex(mc.ConversationID, &discordgo.MessageSend{
		Content:    text,
		Components: components(buttons),
	})
	if err != nil {
		return confirm.PromptHandle{}, err
	}
	return confirm.PromptHandle{ChatID: mc.ConversationID, MessageID: sent.ID}, nil
}

// EditPrompt implements confirm.PromptRenderer.
func (a *Adapter) EditPrompt(ctx context.Context, mc *models.MessageContext, handle confirm.PromptHandle, text string) error {
	empty := []discordgo.MessageComponent{}
	_, err := a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    handle.ChatID,
		ID:         handle.MessageID,
		Content:    &text,
		Components: &empty,
	})
	return err
}

func components(buttons []models.ButtonRow) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([]discordgo.MessageComponent, 0, len(buttons))
	for _, row := range buttons {
		items := make([]discordgo.MessageComponent, 0, len(row))
		for _, btn := range row {
			b := discordgo.Button{Label: btn.Text}
			if btn.URL != "" {
				b.Style = discordgo.LinkButton
				b.URL = btn.URL
			} else {
				b.Style = discordgo.PrimaryButton
				b.CustomID = btn.CallbackData
			}
			items = append(items, b)
		}
		rows = append(rows, discordgo.ActionsRow{Components: items})
	}
	return rows
}

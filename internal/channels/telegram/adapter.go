// Package telegram is the primary transport: long-polling inbound with
// draft-edit streaming, inline-button callbacks for confirmations and
// missed-task prompts, and the outbound channel the router delivers to.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/steward/internal/channels"
	"github.com/haasonsaas/steward/internal/confirm"
	"github.com/haasonsaas/steward/internal/media"
	"github.com/haasonsaas/steward/pkg/models"
)

// TransportName is the routing identifier for this transport.
const TransportName = "telegram"

// Config holds the Telegram adapter configuration.
type Config struct {
	// Token is the bot token from @BotFather.
	Token string

	// AllowedUserIDs restricts who may talk to the assistant. Empty means
	// anyone, which is almost never what a personal agent wants.
	AllowedUserIDs []int64

	// RateLimit and RateBurst bound outbound API calls per second.
	RateLimit float64
	RateBurst int

	// CoalesceInterval is the minimum gap between draft edits while a
	// response streams.
	CoalesceInterval time.Duration

	// MaxReconnectAttempts and ReconnectDelay govern the polling loop.
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Token == "" {
		return errors.New("telegram: token is required")
	}
	if c.RateLimit == 0 {
		c.RateLimit = 25
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
	if c.CoalesceInterval <= 0 {
		c.CoalesceInterval = channels.DefaultCoalesceInterval
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter connects Telegram to the runtime handler.
type Adapter struct {
	config  Config
	handler channels.Handler
	bot     *bot.Bot
	limiter *channels.RateLimiter
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// One turn at a time per chat so streamed drafts never interleave.
	chatMu    sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// NewAdapter creates the adapter. handler receives every inbound turn and
// callback.
func NewAdapter(config Config, handler channels.Handler) (*Adapter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		config:    config,
		handler:   handler,
		limiter:   channels.NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:    config.Logger.With("transport", TransportName),
		chatLocks: make(map[int64]*sync.Mutex),
	}
	b, err := bot.New(config.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	a.bot = b
	return a, nil
}

func (a *Adapter) Name() string { return TransportName }

// Start begins long polling with reconnection.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollWithReconnection(ctx)

	a.logger.Info("telegram transport started")
	return nil
}

func (a *Adapter) pollWithReconnection(ctx context.Context) {
	defer a.wg.Done()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := a.poll(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		attempts++
		a.logger.Error("telegram polling failed",
			"error", err, "attempt", attempts, "max_attempts", a.config.MaxReconnectAttempts)
		if attempts >= a.config.MaxReconnectAttempts {
			a.logger.Error("giving up on telegram polling")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.config.ReconnectDelay):
			a.logger.Info("reconnecting to telegram")
		}
	}
}

func (a *Adapter) poll(ctx context.Context) error {
	a.bot.Start(ctx)
	return ctx.Err()
}

// Stop shuts polling down and waits for in-flight turns.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.logger.Info("telegram transport stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram: stop timed out: %w", ctx.Err())
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	switch {
	case update.CallbackQuery != nil:
		a.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		a.handleMessage(ctx, update.Message)
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}
	if !a.allowed(msg.From.ID) {
		a.logger.Warn("message from unauthorized user", "user_id", msg.From.ID)
		return
	}

	chatID := msg.Chat.ID
	mc := (&models.MessageContext{
		UserID:         strconv.FormatInt(msg.From.ID, 10),
		Transport:      TransportName,
		ConversationID: strconv.FormatInt(chatID, 10),
		Metadata: map[string]string{
			"message_id": strconv.Itoa(msg.ID),
		},
	}).Normalize()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		lock := a.lockFor(chatID)
		lock.Lock()
		defer lock.Unlock()
		a.runTurn(ctx, mc, chatID, msg.Text)
	}()
}

// runTurn streams the response as an edited draft message, then settles the
// final text into it.
func (a *Adapter) runTurn(ctx context.Context, mc *models.MessageContext, chatID int64, text string) {
	var (
		draftMu sync.Mutex
		draftID int
	)
	coalescer := channels.NewCoalescer(a.config.CoalesceInterval, func(full string) {
		draftMu.Lock()
		defer draftMu.Unlock()
		if draftID == 0 {
			sent, err := a.sendText(ctx, chatID, full, nil)
			if err != nil {
				a.logger.Warn("draft send failed", "chat_id", chatID, "error", err)
				return
			}
			draftID = sent.ID
			return
		}
		if err := a.editText(ctx, chatID, draftID, full); err != nil {
			a.logger.Debug("draft edit failed", "chat_id", chatID, "error", err)
		}
	})

	final, err := a.handler.HandleMessage(ctx, mc, text, coalescer.Push)
	streamed := coalescer.Stop()

	if err != nil {
		a.logger.Error("turn failed", "chat_id", chatID, "error", err)
		final = "Something went wrong handling that. Please try again."
	}
	if final == "" {
		final = streamed
	}
	if final == "" {
		return
	}

	draftMu.Lock()
	defer draftMu.Unlock()
	if draftID != 0 {
		if err := a.editText(ctx, chatID, draftID, final); err == nil {
			return
		}
		// Fall through to a fresh message when the final edit is rejected,
		// e.g. identical text or a deleted draft.
	}
	if _, err := a.sendText(ctx, chatID, final, nil); err != nil {
		a.logger.Error("final reply send failed", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) handleCallback(ctx context.Context, query *tgmodels.CallbackQuery) {
	if !a.allowed(query.From.ID) {
		return
	}

	// Always answer so the client stops its spinner.
	if _, err := a.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		a.logger.Debug("answer callback failed", "error", err)
	}

	msg := query.Message.Message
	if msg == nil {
		a.logger.Warn("callback for inaccessible message", "data", query.Data)
		return
	}
	mc := (&models.MessageContext{
		UserID:         strconv.FormatInt(query.From.ID, 10),
		Transport:      TransportName,
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
	}).Normalize()

	edit, handled := a.handler.HandleCallback(ctx, mc, query.Data)
	if !handled {
		a.logger.Warn("unrecognized callback payload", "data", query.Data)
		return
	}
	if edit != "" {
		if err := a.editText(ctx, msg.Chat.ID, msg.ID, edit); err != nil {
			a.logger.Warn("callback edit failed", "chat_id", msg.Chat.ID, "error", err)
		}
	}
}

func (a *Adapter) lockFor(chatID int64) *sync.Mutex {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()
	lock, ok := a.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		a.chatLocks[chatID] = lock
	}
	return lock
}

func (a *Adapter) allowed(userID int64) bool {
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

// Send implements the plain-text outbound channel.
func (a *Adapter) Send(ctx context.Context, user, text string) error {
	chatID, err := parseChatID(user)
	if err != nil {
		return err
	}
	_, err = a.sendText(ctx, chatID, text, nil)
	return err
}

// SendRich sends text with an inline keyboard.
func (a *Adapter) SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow) error {
	chatID, err := parseChatID(user)
	if err != nil {
		return err
	}
	_, err = a.sendText(ctx, chatID, text, keyboard(buttons))
	return err
}

// SendPhoto uploads an image with an optional caption.
func (a *Adapter) SendPhoto(ctx context.Context, user string, photo []byte, caption string) error {
	chatID, err := parseChatID(user)
	if err != nil {
		return err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if prepared, perr := media.PreparePhoto(photo, media.DefaultMaxDimension); perr == nil {
		photo = prepared
	} else {
		a.logger.Warn("photo preparation failed, sending as-is", "error", perr)
	}
	_, err = a.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &tgmodels.InputFileUpload{
			Filename: "photo.jpg",
			Data:     bytes.NewReader(photo),
		},
		Caption: caption,
	})
	return err
}

// RenderPrompt implements confirm.PromptRenderer.
func (a *Adapter) RenderPrompt(ctx context.Context, mc *models.MessageContext, text string, buttons []models.ButtonRow) (confirm.PromptHandle, error) {
	chatID, err := parseChatID(mc.ConversationID)
	if err != nil {
		return confirm.PromptHandle{}, err
	}
	sent, err := a.sendText(ctx, chatID, text, keyboard(buttons))
	if err != nil {
		return confirm.PromptHandle{}, err
	}
	return confirm.PromptHandle{
		ChatID:    strconv.FormatInt(chatID, 10),
		MessageID: strconv.Itoa(sent.ID),
	}, nil
}

// EditPrompt implements confirm.PromptRenderer.
func (a *Adapter) EditPrompt(ctx context.Context, mc *models.MessageContext, handle confirm.PromptHandle, text string) error {
	chatID, err := parseChatID(handle.ChatID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(handle.MessageID)
	if err != nil {
		return fmt.Errorf("telegram: bad message id %q", handle.MessageID)
	}
	return a.editText(ctx, chatID, msgID, text)
}

func (a *Adapter) sendText(ctx context.Context, chatID int64, text string, markup tgmodels.ReplyMarkup) (*tgmodels.Message, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	return a.bot.SendMessage(ctx, params)
}

func (a *Adapter) editText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	return err
}

func keyboard(buttons []models.ButtonRow) tgmodels.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		out := make([]tgmodels.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			out = append(out, tgmodels.InlineKeyboardButton{
				Text:         btn.Text,
				CallbackData: btn.CallbackData,
				URL:          btn.URL,
			})
		}
		rows = append(rows, out)
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func parseChatID(user string) (int64, error) {
	id, err := strconv.ParseInt(user, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: chat id %q is not numeric", user)
	}
	return id, nil
}

package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/steward/pkg/models"
)

type fakeChannel struct {
	name    string
	sendErr error

	sentTo   string
	sentText string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, user, text string) error {
	f.sentTo = user
	f.sentText = text
	return f.sendErr
}

type richChannel struct {
	fakeChannel
	buttons []models.ButtonRow
	photo   []byte
}

func (r *richChannel) SendRich(ctx context.Context, user, text string, buttons []models.ButtonRow) error {
	r.sentTo = user
	r.sentText = text
	r.buttons = buttons
	return r.sendErr
}

func (r *richChannel) SendPhoto(ctx context.Context, user string, photo []byte, caption string) error {
	r.sentTo = user
	r.photo = photo
	r.sentText = caption
	return r.sendErr
}

func TestRouterExplicitChannel(t *testing.T) {
	router := NewRouter(nil)
	telegram := &fakeChannel{name: "telegram"}
	slack := &fakeChannel{name: "slack"}
	router.Register(telegram)
	router.Register(slack)

	if !router.Send(context.Background(), "user-1", "hello", "slack") {
		t.Fatal("send to registered channel failed")
	}
	if slack.sentText != "hello" || telegram.sentText != "" {
		t.Errorf("wrong channel received: slack=%q telegram=%q", slack.sentText, telegram.sentText)
	}

	if router.Send(context.Background(), "user-1", "hello", "pager") {
		t.Error("send to unregistered channel reported success")
	}
}

func TestRouterDefaultAndSoleFallback(t *testing.T) {
	router := NewRouter(nil)
	telegram := &fakeChannel{name: "telegram"}
	router.Register(telegram)

	// Sole registered channel works without a default.
	if !router.Send(context.Background(), "u", "ping", "") {
		t.Fatal("sole channel fallback failed")
	}

	discord := &fakeChannel{name: "discord"}
	router.Register(discord)

	// Two channels and no default: ambiguous, refuse.
	if router.Send(context.Background(), "u", "ping", "") {
		t.Error("ambiguous resolution reported success")
	}

	router.SetDefault("discord")
	if !router.Send(context.Background(), "u", "ping", "") {
		t.Fatal("default channel send failed")
	}
	if discord.sentText != "ping" {
		t.Errorf("default channel did not receive: %q", discord.sentText)
	}
}

func TestRouterSendFailureReturnsFalse(t *testing.T) {
	router := NewRouter(nil)
	router.Register(&fakeChannel{name: "telegram", sendErr: errors.New("api down")})

	if router.Send(context.Background(), "u", "hi", "telegram") {
		t.Error("failed send reported success")
	}
}

func TestRouterCapabilitySplit(t *testing.T) {
	router := NewRouter(nil)
	plain := &fakeChannel{name: "matrix"}
	rich := &richChannel{fakeChannel: fakeChannel{name: "telegram"}}
	router.Register(plain)
	router.Register(rich)

	buttons := []models.ButtonRow{{{Text: "Run now", CallbackData: "mst:ab12cd34:run"}}}

	if router.SendRich(context.Background(), "u", "missed task", buttons, "matrix") {
		t.Error("text-only channel accepted buttons")
	}
	if plain.sentText != "" {
		t.Error("capability miss still delivered")
	}

	if !router.SendRich(context.Background(), "u", "missed task", buttons, "telegram") {
		t.Fatal("rich-capable channel refused buttons")
	}
	if len(rich.buttons) != 1 {
		t.Errorf("buttons not passed through: %v", rich.buttons)
	}

	if router.SendPhoto(context.Background(), "u", []byte{1}, "cap", "matrix") {
		t.Error("text-only channel accepted photo")
	}
	if !router.SendPhoto(context.Background(), "u", []byte{1, 2}, "cap", "telegram") {
		t.Fatal("photo-capable channel refused photo")
	}
	if len(rich.photo) != 2 {
		t.Errorf("photo bytes not passed through")
	}
}

func TestRouterChannelLookup(t *testing.T) {
	router := NewRouter(nil)
	router.Register(&fakeChannel{name: "telegram"})

	if _, ok := router.Channel("telegram"); !ok {
		t.Error("registered channel not found")
	}
	if _, ok := router.Channel("missing"); ok {
		t.Error("unregistered channel found")
	}
}

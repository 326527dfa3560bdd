package telegram

import (
	"testing"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/steward/pkg/models"
)

func TestKeyboardConversion(t *testing.T) {
	buttons := []models.ButtonRow{
		{
			{Text: "Approve", CallbackData: "cfm:ab12cd34:y"},
			{Text: "Deny", CallbackData: "cfm:ab12cd34:n"},
		},
		{
			{Text: "Docs", URL: "https://example.com"},
		},
	}

	markup := keyboard(buttons)
	kb, ok := markup.(*tgmodels.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("markup type %T", markup)
	}
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(kb.InlineKeyboard))
	}
	if kb.InlineKeyboard[0][0].CallbackData != "cfm:ab12cd34:y" {
		t.Errorf("button = %+v", kb.InlineKeyboard[0][0])
	}
	if kb.InlineKeyboard[1][0].URL != "https://example.com" {
		t.Errorf("url button = %+v", kb.InlineKeyboard[1][0])
	}

	if keyboard(nil) != nil {
		t.Error("empty buttons should give no markup")
	}
}

func TestParseChatID(t *testing.T) {
	if id, err := parseChatID("123456789"); err != nil || id != 123456789 {
		t.Errorf("parseChatID = %d, %v", id, err)
	}
	if _, err := parseChatID("alice"); err == nil {
		t.Error("non-numeric chat id accepted")
	}
}

func TestAllowed(t *testing.T) {
	open := &Adapter{config: Config{}}
	if !open.allowed(42) {
		t.Error("empty allowlist should admit everyone")
	}

	restricted := &Adapter{config: Config{AllowedUserIDs: []int64{7, 9}}}
	if !restricted.allowed(9) {
		t.Error("listed user rejected")
	}
	if restricted.allowed(42) {
		t.Error("unlisted user admitted")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Token: "123:abc"}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit == 0 || cfg.RateBurst == 0 || cfg.CoalesceInterval == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	missing := Config{}
	if err := missing.validate(); err == nil {
		t.Error("missing token accepted")
	}
}

package runtime

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/internal/config"
	"github.com/haasonsaas/steward/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Owner: config.OwnerConfig{UserID: "owner-1"},
		LLM: config.LLMConfig{
			Providers: map[string]config.ProviderConfig{
				"anthropic": {APIKey: "sk-test"},
			},
		},
		Tasks:   config.TasksConfig{Database: ":memory:"},
		Scratch: config.ScratchConfig{Root: filepath.Join(t.TempDir(), "scratch")},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(testConfig(t), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rt.store.Close() })
	return rt
}

// fakeProvider returns a canned reply for every round.
type fakeProvider struct {
	reply string
}

func (p *fakeProvider) Name() string        { return "fake" }
func (p *fakeProvider) SupportsTools() bool { return true }

func (p *fakeProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 2)
	ch <- &agent.CompletionChunk{Text: p.reply}
	ch <- &agent.CompletionChunk{StopReason: agent.StopEndTurn, Done: true}
	close(ch)
	return ch, nil
}

func TestNewRegistersTools(t *testing.T) {
	rt := newTestRuntime(t)

	want := []string{
		"schedule_task", "list_scheduled_tasks", "cancel_scheduled_task",
		"write_file", "read_file", "list_files", "delete_file",
	}
	tools := rt.registry.Tools()
	if len(tools) != len(want) {
		t.Fatalf("tools = %d, want %d", len(tools), len(want))
	}
	byName := map[string]bool{}
	for _, tool := range tools {
		byName[tool.Name()] = true
	}
	for _, name := range want {
		if !byName[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestHandleMessageAppendsToSession(t *testing.T) {
	rt := newTestRuntime(t)
	rt.loop = agent.NewLoop(&fakeProvider{reply: "hello there"}, rt.registry, agent.LoopConfig{})

	mc := &models.MessageContext{
		UserID:         "owner-1",
		Transport:      "telegram",
		ConversationID: "chat-1",
	}
	var streamed strings.Builder
	reply, err := rt.HandleMessage(context.Background(), mc, "hi", func(s string) {
		streamed.WriteString(s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q", reply)
	}
	if streamed.String() != "hello there" {
		t.Errorf("streamed = %q", streamed.String())
	}

	history := rt.sessions.Get("chat-1").History()
	if len(history) != 2 {
		t.Fatalf("history = %d messages", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "hi" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content != "hello there" {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestHandleMessageClearCommand(t *testing.T) {
	rt := newTestRuntime(t)
	rt.loop = agent.NewLoop(&fakeProvider{reply: "ok"}, rt.registry, agent.LoopConfig{})

	mc := &models.MessageContext{Transport: "telegram", ConversationID: "chat-2"}
	if _, err := rt.HandleMessage(context.Background(), mc, "remember this", nil); err != nil {
		t.Fatal(err)
	}

	reply, err := rt.HandleMessage(context.Background(), mc, "/new", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "new conversation") {
		t.Errorf("reply = %q", reply)
	}
	if n := rt.sessions.Get("chat-2").Len(); n != 0 {
		t.Errorf("session length after clear = %d", n)
	}
}

func TestHandleCallbackRouting(t *testing.T) {
	rt := newTestRuntime(t)
	mc := &models.MessageContext{Transport: "telegram", ConversationID: "chat-3"}

	reply, handled := rt.HandleCallback(context.Background(), mc, "cfm:deadbeef:y")
	if !handled {
		t.Fatal("confirmation callback not handled")
	}
	if !strings.Contains(reply, "already been decided") {
		t.Errorf("stale confirmation reply = %q", reply)
	}

	reply, handled = rt.HandleCallback(context.Background(), mc, "mst:deadbeef:run")
	if !handled {
		t.Fatal("recovery callback not handled")
	}
	if !strings.Contains(reply, "expired") {
		t.Errorf("unknown recovery reply = %q", reply)
	}

	if _, handled = rt.HandleCallback(context.Background(), mc, "bogus"); handled {
		t.Error("garbage payload should not be handled")
	}
}

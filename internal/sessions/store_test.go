package sessions

import (
	"fmt"
	"sync"
	"testing"

	"github.com/haasonsaas/steward/pkg/models"
)

func TestStoreCreatesOnFirstUse(t *testing.T) {
	store := NewStore(0)

	a := store.Get("chat-1")
	if a == nil {
		t.Fatal("Get returned nil")
	}
	if store.Get("chat-1") != a {
		t.Error("same conversation returned a different session")
	}
	if store.Get("chat-2") == a {
		t.Error("different conversation shared a session")
	}
	if store.Len() != 2 {
		t.Errorf("store tracks %d sessions, want 2", store.Len())
	}
}

func TestSessionAppendAndHistory(t *testing.T) {
	s := NewStore(10).Get("chat")
	s.Append(models.RoleUser, "hello")
	s.Append(models.RoleAssistant, "hi there")

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Content != "hi there" {
		t.Errorf("history = %+v", history)
	}

	// History is a copy; mutating it must not touch the session.
	history[0].Content = "tampered"
	if s.History()[0].Content != "hello" {
		t.Error("History returned a shared slice")
	}
}

func TestSessionWindowTrimsOldest(t *testing.T) {
	s := NewStore(3).Get("chat")
	for i := 1; i <= 5; i++ {
		s.Append(models.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	history := s.History()
	if len(history) != 3 {
		t.Fatalf("window = %d messages, want 3", len(history))
	}
	if history[0].Content != "msg-3" || history[2].Content != "msg-5" {
		t.Errorf("wrong messages survived: %+v", history)
	}
}

func TestSessionClear(t *testing.T) {
	s := NewStore(10).Get("chat")
	s.Append(models.RoleUser, "a")
	s.Append(models.RoleAssistant, "b")

	if n := s.Clear(); n != 2 {
		t.Errorf("Clear dropped %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Errorf("session not empty after Clear: %d", s.Len())
	}
	if n := s.Clear(); n != 0 {
		t.Errorf("second Clear dropped %d, want 0", n)
	}
}

func TestSessionConcurrentAppend(t *testing.T) {
	s := NewStore(100).Get("chat")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Append(models.RoleUser, "x")
			}
		}()
	}
	wg.Wait()

	if s.Len() != 100 {
		t.Errorf("messages = %d, want 100", s.Len())
	}
}

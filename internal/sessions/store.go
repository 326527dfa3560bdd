// Package sessions keeps per-conversation chat history in memory. Each
// conversation holds a sliding window of recent messages; older ones are
// trimmed on append so a long-lived chat never grows without bound.
package sessions

import (
	"sync"
	"time"

	"github.com/haasonsaas/steward/pkg/models"
)

// DefaultWindow is how many messages a session retains.
const DefaultWindow = 50

// Session is one conversation's recent history. Safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	window    int
	messages  []models.ChatMessage
	updatedAt time.Time
}

// Append adds a message, trimming the oldest entries beyond the window.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, models.ChatMessage{Role: role, Content: content})
	if over := len(s.messages) - s.window; over > 0 {
		s.messages = append(s.messages[:0:0], s.messages[over:]...)
	}
	s.updatedAt = time.Now()
}

// History returns a copy of the window, oldest first.
func (s *Session) History() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the session and reports how many messages were dropped.
func (s *Session) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.messages)
	s.messages = nil
	s.updatedAt = time.Now()
	return n
}

// Len returns the current message count.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// UpdatedAt returns when the session last changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Store maps conversation ids to sessions.
type Store struct {
	mu       sync.Mutex
	window   int
	sessions map[string]*Session
}

// NewStore creates a session store. window <= 0 uses DefaultWindow.
func NewStore(window int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		window:   window,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for a conversation, creating it on first use.
func (st *Store) Get(conversationID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[conversationID]
	if !ok {
		s = &Session{window: st.window}
		st.sessions[conversationID] = s
	}
	return s
}

// Len returns how many conversations have sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

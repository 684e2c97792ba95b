package engine

import (
	"sync"

	"github.com/stellarlinkco/aria/internal/profile"
)

// Session is one user's in-process transcript.
type Session struct {
	UserID string
	Name   string

	mu       sync.Mutex
	messages []profile.Message
}

func NewSession(userID, name string) *Session {
	return &Session{UserID: userID, Name: name}
}

// Append adds m and returns the new message count.
func (s *Session) Append(m profile.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return len(s.messages)
}

// Recent returns a copy of the last k messages.
func (s *Session) Recent(k int) []profile.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k <= 0 {
		return []profile.Message{}
	}
	start := len(s.messages) - k
	if start < 0 {
		start = 0
	}
	return append([]profile.Message{}, s.messages[start:]...)
}

func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Sessions is a registry of sessions keyed by user id.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]*Session)}
}

// Get returns the user's session, creating it on first use.
func (r *Sessions) Get(userID, name string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[userID]; ok {
		return s
	}
	s := NewSession(userID, name)
	r.items[userID] = s
	return s
}

func (r *Sessions) Delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, userID)
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

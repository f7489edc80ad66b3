package agent

import "sync"

// Session holds the backend conversation id for a single chat widget.
// The zero value is an empty session.
type Session struct {
	mu sync.RWMutex
	id string
}

// NewSession returns a session that already carries id (which may be empty).
func NewSession(id string) *Session {
	return &Session{id: id}
}

// ID returns the current conversation id, or "" if none has been adopted yet.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetID adopts id as the current conversation id.
func (s *Session) SetID(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// Reset clears the conversation id.
func (s *Session) Reset() {
	s.SetID("")
}

// Empty reports whether no conversation id has been adopted.
func (s *Session) Empty() bool {
	return s.ID() == ""
}

// ShortID returns the first 8 characters of the id for display.
func (s *Session) ShortID() string {
	id := s.ID()
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

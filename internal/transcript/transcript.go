// Package transcript persists chat logs so they can be listed, shown and
// exported after the session ends.
package transcript

import (
	"time"

	"github.com/google/uuid"

	"github.com/longkey1/rulechat/internal/conversation"
)

// Transcript is a saved conversation log
type Transcript struct {
	ID             string                     `json:"id" yaml:"id"`                           // UUID v4
	ConversationID string                     `json:"conversation_id" yaml:"conversation_id"` // Backend id, "local-..." when the backend was down
	Backend        string                     `json:"backend" yaml:"backend"`                 // API URL the conversation ran against
	Name           string                     `json:"name" yaml:"name"`                       // Optional name (empty by default)
	CreatedAt      time.Time                  `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at" yaml:"updated_at"`
	Messages       []conversation.ChatMessage `json:"messages" yaml:"messages"`
}

// New creates an empty transcript for a conversation against backend
func New(backend string, now time.Time) *Transcript {
	return &Transcript{
		ID:        uuid.New().String(),
		Backend:   backend,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []conversation.ChatMessage{},
	}
}

// Update replaces the log with messages and stamps the transcript
func (t *Transcript) Update(conversationID string, messages []conversation.ChatMessage, now time.Time) {
	t.ConversationID = conversationID
	t.Messages = messages
	t.UpdatedAt = now
}

// ShortID returns the shortened transcript ID (first 8 characters)
func (t *Transcript) ShortID() string {
	if len(t.ID) >= 8 {
		return t.ID[:8]
	}
	return t.ID
}

// DisplayName returns the name if set, otherwise the short ID
func (t *Transcript) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ShortID()
}

// MessageCount returns the number of messages in the transcript
func (t *Transcript) MessageCount() int {
	return len(t.Messages)
}

// UserMessageCount returns the number of messages the user sent
func (t *Transcript) UserMessageCount() int {
	n := 0
	for _, m := range t.Messages {
		if m.IsSent() {
			n++
		}
	}
	return n
}

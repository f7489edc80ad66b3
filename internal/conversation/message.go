package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Direction tells whether a message was sent by the user or received from the agent.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Kind classifies how a message should be presented.
type Kind string

const (
	KindText   Kind = "text"
	KindSystem Kind = "system"
	KindError  Kind = "error"
)

// ChatMessage is one entry of the conversation log.
type ChatMessage struct {
	ID          string    `json:"id" yaml:"id"`
	DisplayName string    `json:"display_name" yaml:"display_name"` // e.g. "You 14:05" or "Bot (RAG) 14:05"
	Body        string    `json:"body" yaml:"body"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Kind        Kind      `json:"kind" yaml:"kind"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

func newMessage(name, body string, dir Direction, kind Kind, at time.Time) ChatMessage {
	return ChatMessage{
		ID:          uuid.New().String(),
		DisplayName: name,
		Body:        body,
		Direction:   dir,
		Kind:        kind,
		CreatedAt:   at,
	}
}

// IsSent reports whether the user authored the message.
func (m ChatMessage) IsSent() bool {
	return m.Direction == Sent
}

// Flags gate user input. Input is accepted only when neither is set.
type Flags struct {
	Initializing bool
	Busy         bool
}

// Ready reports whether the controller accepts a new operation.
func (f Flags) Ready() bool {
	return !f.Initializing && !f.Busy
}

// State names the controller state derived from the flags.
func (f Flags) State() string {
	switch {
	case f.Initializing:
		return "initializing"
	case f.Busy:
		return "busy"
	default:
		return "ready"
	}
}

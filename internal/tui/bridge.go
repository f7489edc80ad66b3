package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/longkey1/rulechat/internal/conversation"
)

// Bridge carries controller events into the Bubble Tea program. Pass Observe
// to conversation.WithObserver and the Bridge to New.
type Bridge struct {
	events chan conversation.Event
	done   chan struct{}
	once   sync.Once
}

// NewBridge creates an open bridge.
func NewBridge() *Bridge {
	return &Bridge{
		events: make(chan conversation.Event),
		done:   make(chan struct{}),
	}
}

// Observe hands e to the program. It blocks until the program takes the event
// or the bridge is closed, so events reach the view in emission order.
func (b *Bridge) Observe(e conversation.Event) {
	select {
	case b.events <- e:
	case <-b.done:
	}
}

// Close releases any blocked Observe call. It is safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// wait returns a command delivering the next event.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-b.events:
			return eventMsg{event: e}
		case <-b.done:
			return nil
		}
	}
}

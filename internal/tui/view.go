package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/longkey1/rulechat/internal/conversation"
)

// View renders the chat screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.flags.Initializing:
		b.WriteString(fmt.Sprintf("%s Connecting to the agent...", m.spinner.View()))
	case m.flags.Busy || m.inFlight:
		b.WriteString(fmt.Sprintf("%s Thinking...", m.spinner.View()))
	case m.status != "":
		b.WriteString(warningStyle.Render(m.status))
	}
	b.WriteString("\n")

	if m.dialog.stage != dialogClosed {
		b.WriteString(m.dialogView())
	} else if m.acceptsInput() {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(dimStyle.Render(m.input.View()))
	}
	b.WriteString("\n")

	b.WriteString(dimStyle.Render(m.help()))
	return b.String()
}

func (m Model) header() string {
	id := m.ctrl.ConversationID()
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "-"
	}
	title := titleStyle.Render(m.ctrl.BotName())
	bar := statusBarStyle.Render(fmt.Sprintf("%s · conversation %s · %s",
		conversation.BackendLabel(m.decisionServices), id, m.flags.State()))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", bar)
}

func (m Model) dialogView() string {
	label := "Upload PDF: choose a file"
	if m.dialog.stage == dialogPrompt {
		label = fmt.Sprintf("Upload %s: ask something about it, or leave blank", m.dialog.path)
	}
	return dialogStyle.Render(label + "\n" + m.dialog.input.View() + "\n" + dimStyle.Render("Enter: next · Esc: cancel"))
}

func (m Model) help() string {
	de := "off"
	if m.decisionServices {
		de = "on"
	}
	return fmt.Sprintf("Enter: send · Ctrl+T: decision services (%s) · Ctrl+U: upload · Ctrl+R: reset · Ctrl+D: memory · Esc: quit", de)
}

// formatMessages renders the log for the viewport, wrapping bodies to width.
func formatMessages(messages []conversation.ChatMessage, width int) string {
	if len(messages) == 0 {
		return dimStyle.Render("No messages yet.")
	}

	body := lipgloss.NewStyle().Width(width - 2).PaddingLeft(2)

	var b strings.Builder
	for i, msg := range messages {
		name := receivedNameStyle
		switch {
		case msg.Kind == conversation.KindError:
			name = errorStyle.Bold(true)
		case msg.Kind == conversation.KindSystem:
			name = dimStyle.Bold(true)
		case msg.IsSent():
			name = sentNameStyle
		}

		b.WriteString(name.Render(msg.DisplayName))
		b.WriteString("\n")
		if msg.Kind == conversation.KindError {
			b.WriteString(body.Inherit(errorStyle).Render(msg.Body))
		} else {
			b.WriteString(body.Render(msg.Body))
		}
		if i < len(messages)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

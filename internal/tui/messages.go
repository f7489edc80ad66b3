package tui

import "github.com/longkey1/rulechat/internal/conversation"

// eventMsg wraps one controller event.
type eventMsg struct {
	event conversation.Event
}

// initDoneMsg reports that the conversation has been initialized.
type initDoneMsg struct{}

// sendDoneMsg reports the end of a send round trip.
type sendDoneMsg struct {
	err error
}

// uploadDoneMsg reports the end of an upload.
type uploadDoneMsg struct {
	filename string
	err      error
}

// resetDoneMsg reports the end of a reset.
type resetDoneMsg struct {
	err error
}

// inspectDoneMsg reports the end of a memory inspection.
type inspectDoneMsg struct {
	err error
}

// savedMsg reports the result of persisting the log.
type savedMsg struct {
	err error
}

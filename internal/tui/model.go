// Package tui is the full-screen chat front end built on Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/longkey1/rulechat/internal/conversation"
)

// Controller is the conversation the view drives. *conversation.Controller implements it.
type Controller interface {
	Initialize(ctx context.Context)
	Send(ctx context.Context, text string) error
	Upload(ctx context.Context, up conversation.PendingUpload) error
	Reset(ctx context.Context) error
	Inspect(ctx context.Context) error
	Messages() []conversation.ChatMessage
	Flags() conversation.Flags
	DecisionServices() bool
	SetDecisionServices(enabled bool)
	ConversationID() string
	BotName() string
}

// SaveFunc persists the log after an operation completes.
type SaveFunc func(conversationID string, messages []conversation.ChatMessage) error

type dialogStage int

const (
	dialogClosed dialogStage = iota
	dialogPath
	dialogPrompt
)

// uploadDialog collects a PendingUpload in two steps.
type uploadDialog struct {
	stage dialogStage
	path  string
	input textinput.Model
}

// Model is the Bubble Tea model of the chat screen. It keeps only the input
// text, the dialog state and a view of the log built from controller events.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	bridge *Bridge
	save   SaveFunc

	messages         []conversation.ChatMessage
	flags            conversation.Flags
	decisionServices bool
	inFlight         bool
	status           string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	dialog   uploadDialog

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithSaver sets the function called after every completed operation.
func WithSaver(fn SaveFunc) Option {
	return func(m *Model) {
		m.save = fn
	}
}

// New creates the chat model. ctx bounds every request the model issues.
func New(ctx context.Context, ctrl Controller, bridge *Bridge, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your question... (Enter to send)"
	ti.CharLimit = 5000
	ti.Prompt = "> "

	di := textinput.New()
	di.CharLimit = 4096
	di.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))

	m := Model{
		ctx:              ctx,
		ctrl:             ctrl,
		bridge:           bridge,
		messages:         ctrl.Messages(),
		flags:            ctrl.Flags(),
		decisionServices: ctrl.DecisionServices(),
		input:            ti,
		viewport:         viewport.New(80, 20),
		spinner:          sp,
		dialog:           uploadDialog{input: di},
		width:            80,
		height:           24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.syncFocus()
	m.layout()
	m.refresh()
	return m
}

// Init starts the conversation and begins listening for controller events.
func (m Model) Init() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return tea.Batch(
		func() tea.Msg {
			ctrl.Initialize(ctx)
			return initDoneMsg{}
		},
		m.bridge.wait(),
		m.spinner.Tick,
		textinput.Blink,
	)
}

// Update handles messages for the chat screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case eventMsg:
		m.messages = msg.event.Apply(m.messages)
		if msg.event.Type == conversation.EventFlags {
			m.flags = msg.event.Flags
		}
		m.syncFocus()
		m.refresh()
		return m, m.bridge.wait()

	case initDoneMsg:
		return m, nil

	case sendDoneMsg:
		m.inFlight = false
		if gated(msg.err) {
			return m, nil
		}
		// The field is cleared only once the round trip is over
		m.input.Reset()
		m.setError("send", msg.err)
		return m, m.saveCmd()

	case uploadDoneMsg:
		m.inFlight = false
		if msg.err == nil {
			m.status = fmt.Sprintf("uploaded %s", msg.filename)
		}
		m.setError("upload", msg.err)
		return m, m.saveCmd()

	case resetDoneMsg:
		m.inFlight = false
		m.status = "conversation reset"
		if msg.err != nil && !gated(msg.err) {
			m.status = "conversation reset locally: " + msg.err.Error()
		}
		return m, m.saveCmd()

	case inspectDoneMsg:
		m.inFlight = false
		m.setError("inspect", msg.err)
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = "saving transcript failed: " + msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.dialog.stage != dialogClosed {
		m.dialog.input, cmd = m.dialog.input.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.dialog.stage != dialogClosed {
		return m.handleDialogKey(msg)
	}

	switch msg.String() {
	case "esc":
		return m, tea.Quit

	case "enter":
		text := m.input.Value()
		if !m.acceptsInput() || strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.inFlight = true
		m.status = ""
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			return sendDoneMsg{err: ctrl.Send(ctx, text)}
		}

	case "ctrl+r":
		if !m.acceptsInput() {
			return m, nil
		}
		m.inFlight = true
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			return resetDoneMsg{err: ctrl.Reset(ctx)}
		}

	case "ctrl+d":
		if !m.acceptsInput() {
			return m, nil
		}
		m.inFlight = true
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			return inspectDoneMsg{err: ctrl.Inspect(ctx)}
		}

	case "ctrl+u":
		if !m.acceptsInput() {
			return m, nil
		}
		m.openDialog()
		return m, textinput.Blink

	case "ctrl+t":
		m.decisionServices = !m.decisionServices
		m.ctrl.SetDecisionServices(m.decisionServices)
		m.status = "backend: " + conversation.BackendLabel(m.decisionServices)
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Input is disabled while initializing or busy
	if !m.acceptsInput() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeDialog()
		m.status = "upload cancelled"
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.dialog.input.Value())
		if m.dialog.stage == dialogPath {
			if err := checkPDF(value); err != nil {
				m.status = err.Error()
				return m, nil
			}
			m.dialog.path = value
			m.dialog.stage = dialogPrompt
			m.dialog.input.Reset()
			m.dialog.input.Placeholder = "Optional question about the document (Enter to upload)"
			m.status = ""
			return m, nil
		}

		path := m.dialog.path
		up := conversation.PendingUpload{
			Filename: path,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
			Prompt: value,
		}
		m.closeDialog()
		m.inFlight = true
		m.status = ""
		ctx, ctrl := m.ctx, m.ctrl
		name := filepath.Base(path)
		return m, func() tea.Msg {
			return uploadDoneMsg{filename: name, err: ctrl.Upload(ctx, up)}
		}
	}

	var cmd tea.Cmd
	m.dialog.input, cmd = m.dialog.input.Update(msg)
	return m, cmd
}

func (m *Model) openDialog() {
	m.dialog.stage = dialogPath
	m.dialog.path = ""
	m.dialog.input.Reset()
	m.dialog.input.Placeholder = "Path to a PDF file"
	m.dialog.input.Focus()
	m.input.Blur()
	m.status = ""
	m.layout()
	m.refresh()
}

// closeDialog hides the dialog and drops the pending upload.
func (m *Model) closeDialog() {
	m.dialog.stage = dialogClosed
	m.dialog.path = ""
	m.dialog.input.Reset()
	m.dialog.input.Blur()
	m.syncFocus()
	m.layout()
	m.refresh()
}

func (m Model) acceptsInput() bool {
	return m.flags.Ready() && !m.inFlight
}

func (m *Model) syncFocus() {
	if m.dialog.stage != dialogClosed {
		return
	}
	if m.acceptsInput() {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) setError(op string, err error) {
	if err == nil || gated(err) {
		return
	}
	m.status = fmt.Sprintf("%s failed: %v", op, err)
}

func (m Model) saveCmd() tea.Cmd {
	if m.save == nil {
		return nil
	}
	save, id, msgs := m.save, m.ctrl.ConversationID(), m.messages
	return func() tea.Msg {
		return savedMsg{err: save(id, msgs)}
	}
}

func (m *Model) layout() {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	// Reserve space for header, status, spinner, input and footer
	h := m.height - 8
	if m.dialog.stage != dialogClosed {
		h -= 3
	}
	if h < 5 {
		h = 5
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
	m.dialog.input.Width = w - 8
}

func (m *Model) refresh() {
	m.viewport.SetContent(formatMessages(m.messages, m.viewport.Width))
	m.viewport.GotoBottom()
}

// gated reports whether err means the operation was refused before it started.
func gated(err error) bool {
	return errors.Is(err, conversation.ErrBusy) || errors.Is(err, conversation.ErrNotReady)
}

func checkPDF(path string) error {
	if path == "" {
		return errors.New("no file selected")
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%s is not a PDF file", filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

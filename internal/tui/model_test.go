package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/rulechat/internal/conversation"
)

type fakeController struct {
	mu         sync.Mutex
	calls      []string
	messages   []conversation.ChatMessage
	flags      conversation.Flags
	de         bool
	sendErr    error
	lastSend   string
	lastUpload conversation.PendingUpload
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Initialize(ctx context.Context) { f.record("initialize") }

func (f *fakeController) Send(ctx context.Context, text string) error {
	f.record("send")
	f.mu.Lock()
	f.lastSend = text
	f.mu.Unlock()
	return f.sendErr
}

func (f *fakeController) Upload(ctx context.Context, up conversation.PendingUpload) error {
	f.record("upload")
	f.mu.Lock()
	f.lastUpload = up
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Reset(ctx context.Context) error {
	f.record("reset")
	return nil
}

func (f *fakeController) Inspect(ctx context.Context) error {
	f.record("inspect")
	return nil
}

func (f *fakeController) Messages() []conversation.ChatMessage { return f.messages }
func (f *fakeController) Flags() conversation.Flags { return f.flags }
func (f *fakeController) DecisionServices() bool { return f.de }
func (f *fakeController) SetDecisionServices(enabled bool) { f.de = enabled }
func (f *fakeController) ConversationID() string { return "conv-1234567890" }
func (f *fakeController) BotName() string { return "Bot" }

func greeting() []conversation.ChatMessage {
	return []conversation.ChatMessage{{ID: "g", DisplayName: "Bot", Body: "Hi, I'm ChatBot. Ask me anything!", Direction: conversation.Received, Kind: conversation.KindText}}
}

func newReadyModel(t *testing.T, opts ...Option) (Model, *fakeController) {
	t.Helper()
	ctrl := &fakeController{messages: greeting()}
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	return New(context.Background(), ctrl, bridge, opts...), ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestInputDisabledWhileInitializing(t *testing.T) {
	ctrl := &fakeController{messages: greeting(), flags: conversation.Flags{Initializing: true}}
	bridge := NewBridge()
	defer bridge.Close()
	m := New(context.Background(), ctrl, bridge)

	m = typeText(t, m, "hello")
	assert.Empty(t, m.input.Value())

	_, cmd := update(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	_, cmd = update(t, m, key(tea.KeyCtrlR))
	assert.Nil(t, cmd)

	m, _ = update(t, m, eventMsg{event: conversation.Event{Type: conversation.EventFlags, Flags: conversation.Flags{}}})
	m = typeText(t, m, "hello")
	assert.Equal(t, "hello", m.input.Value())
}

func TestSendClearsInputOnlyAfterCompletion(t *testing.T) {
	m, ctrl := newReadyModel(t)
	m = typeText(t, m, "Is this loan approved?")

	m, cmd := update(t, m, key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Equal(t, "Is this loan approved?", m.input.Value())

	// A second submit while the first is in flight is ignored
	_, again := update(t, m, key(tea.KeyEnter))
	assert.Nil(t, again)

	msg := cmd()
	require.IsType(t, sendDoneMsg{}, msg)
	assert.Equal(t, []string{"send"}, ctrl.Calls())
	assert.Equal(t, "Is this loan approved?", ctrl.lastSend)

	m, _ = update(t, m, msg)
	assert.Empty(t, m.input.Value())
	assert.False(t, m.inFlight)
}

func TestBlankInputNotSent(t *testing.T) {
	m, ctrl := newReadyModel(t)
	m = typeText(t, m, "   ")

	_, cmd := update(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.Calls())
}

func TestRefusedSendKeepsInput(t *testing.T) {
	m, _ := newReadyModel(t)
	m = typeText(t, m, "hello")
	m.inFlight = true

	m, _ = update(t, m, sendDoneMsg{err: conversation.ErrBusy})
	assert.Equal(t, "hello", m.input.Value())
	assert.Empty(t, m.status)
}

func TestFailedSendShowsStatus(t *testing.T) {
	m, ctrl := newReadyModel(t)
	ctrl.sendErr = errors.New("connection refused")
	m = typeText(t, m, "hello")

	m, cmd := update(t, m, key(tea.KeyEnter))
	m, _ = update(t, m, cmd())
	assert.Empty(t, m.input.Value())
	assert.Equal(t, "send failed: connection refused", m.status)
}

func TestEventsUpdateLog(t *testing.T) {
	m, _ := newReadyModel(t)

	sent := conversation.ChatMessage{ID: "1", DisplayName: "You 14:05", Body: "hello", Direction: conversation.Sent}
	m, cmd := update(t, m, eventMsg{event: conversation.Event{Type: conversation.EventAppended, Message: sent}})
	require.NotNil(t, cmd, "the model keeps listening for events")
	require.Len(t, m.messages, 2)
	assert.Contains(t, m.viewport.View(), "You 14:05")

	m, _ = update(t, m, eventMsg{event: conversation.Event{Type: conversation.EventFlags, Flags: conversation.Flags{Busy: true}}})
	assert.False(t, m.acceptsInput())
	assert.Contains(t, m.View(), "Thinking...")

	m, _ = update(t, m, eventMsg{event: conversation.Event{Type: conversation.EventReplaced, Messages: greeting()}})
	require.Len(t, m.messages, 1)
	assert.Equal(t, "g", m.messages[0].ID)
}

func TestShortcuts(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyType
		want tea.Msg
		call string
	}{
		{"reset", tea.KeyCtrlR, resetDoneMsg{}, "reset"},
		{"inspect", tea.KeyCtrlD, inspectDoneMsg{}, "inspect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctrl := newReadyModel(t)
			m, cmd := update(t, m, key(tt.key))
			require.NotNil(t, cmd)
			assert.True(t, m.inFlight)

			msg := cmd()
			assert.IsType(t, tt.want, msg)
			assert.Equal(t, []string{tt.call}, ctrl.Calls())

			m, _ = update(t, m, msg)
			assert.False(t, m.inFlight)
		})
	}
}

func TestToggleDecisionServices(t *testing.T) {
	m, ctrl := newReadyModel(t)

	m, _ = update(t, m, key(tea.KeyCtrlT))
	assert.True(t, ctrl.de)
	assert.True(t, m.decisionServices)
	assert.Contains(t, m.View(), "Decision Services")

	m, _ = update(t, m, key(tea.KeyCtrlT))
	assert.False(t, ctrl.de)
	assert.Contains(t, m.View(), "RAG")
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))
	return path
}

func TestUploadDialog(t *testing.T) {
	path := writePDF(t)
	m, ctrl := newReadyModel(t)

	m, _ = update(t, m, key(tea.KeyCtrlU))
	require.Equal(t, dialogPath, m.dialog.stage)

	m = typeText(t, m, path)
	m, cmd := update(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	require.Equal(t, dialogPrompt, m.dialog.stage)
	assert.Equal(t, path, m.dialog.path)

	m = typeText(t, m, "Summarize the eligibility rules")
	m, cmd = update(t, m, key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Equal(t, dialogClosed, m.dialog.stage)

	msg := cmd()
	assert.Equal(t, uploadDoneMsg{filename: "policy.pdf"}, msg)
	assert.Equal(t, []string{"upload"}, ctrl.Calls())
	assert.Equal(t, path, ctrl.lastUpload.Filename)
	assert.Equal(t, "Summarize the eligibility rules", ctrl.lastUpload.Prompt)

	f, err := ctrl.lastUpload.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "%PDF-1.4", string(data))

	m, _ = update(t, m, msg)
	assert.Equal(t, "uploaded policy.pdf", m.status)
}

func TestUploadDialogCancel(t *testing.T) {
	path := writePDF(t)
	m, ctrl := newReadyModel(t)

	m, _ = update(t, m, key(tea.KeyCtrlU))
	m = typeText(t, m, path)
	m, _ = update(t, m, key(tea.KeyEnter))
	require.Equal(t, dialogPrompt, m.dialog.stage)

	m, cmd := update(t, m, key(tea.KeyEsc))
	assert.Nil(t, cmd)
	assert.Equal(t, dialogClosed, m.dialog.stage)
	assert.Empty(t, m.dialog.path)
	assert.Empty(t, m.dialog.input.Value())
	assert.Empty(t, ctrl.Calls())
	assert.True(t, m.input.Focused())
}

func TestUploadDialogRejectsBadPath(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notPDF, []byte("x"), 0644))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"blank", "", "no file selected"},
		{"wrong extension", notPDF, "notes.txt is not a PDF file"},
		{"missing", filepath.Join(dir, "missing.pdf"), "cannot read"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newReadyModel(t)
			m, _ = update(t, m, key(tea.KeyCtrlU))
			if tt.path != "" {
				m = typeText(t, m, tt.path)
			}
			m, cmd := update(t, m, key(tea.KeyEnter))
			assert.Nil(t, cmd)
			assert.Equal(t, dialogPath, m.dialog.stage)
			assert.Contains(t, m.status, tt.wantErr)
		})
	}
}

func TestSaverRunsAfterCompletion(t *testing.T) {
	var savedID string
	var savedCount int
	m, _ := newReadyModel(t, WithSaver(func(id string, msgs []conversation.ChatMessage) error {
		savedID = id
		savedCount = len(msgs)
		return nil
	}))

	_, cmd := update(t, m, resetDoneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, savedMsg{}, cmd())
	assert.Equal(t, "conv-1234567890", savedID)
	assert.Equal(t, 1, savedCount)
}

func TestBridge(t *testing.T) {
	b := NewBridge()
	e := conversation.Event{Type: conversation.EventFlags, Flags: conversation.Flags{Busy: true}}

	go b.Observe(e)
	assert.Equal(t, eventMsg{event: e}, b.wait()())

	done := make(chan struct{})
	go func() {
		b.Observe(e)
		close(done)
	}()
	b.Close()
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe still blocked after Close")
	}
	assert.Nil(t, b.wait()())
}

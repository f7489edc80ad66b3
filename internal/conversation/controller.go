// Package conversation drives one chat widget against the rule agent: it
// sequences initialize, send, upload, reset and inspect calls, keeps the
// message log and tracks the flags that gate user input.
package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/longkey1/rulechat/internal/agent"
)

const (
	DefaultBotName  = "Bot"
	DefaultGreeting = "Hi, I'm an AI to answer your questions. I can leverage your corporate decision services to generate answers compliant to your business policies"

	SystemName = "System"

	// FailedReplyBody is shown when a message could not be delivered.
	FailedReplyBody = "Failed to get chat response"
	// NoResponseBody is shown when an upload with a prompt returned no text.
	NoResponseBody = "No response returned."

	timestampLayout = "15:04"
)

var (
	// ErrBusy is returned when an operation is already in flight.
	ErrBusy = errors.New("another request is in progress")
	// ErrNotReady is returned before the conversation has been initialized.
	ErrNotReady = errors.New("conversation is still initializing")
	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file selected")
)

// Agent is the backend the controller talks to. *agent.Client implements it.
type Agent interface {
	Initialize(ctx context.Context, sess *agent.Session) string
	Send(ctx context.Context, sess *agent.Session, message string, useDecisionServices bool) (*agent.Reply, error)
	Reset(ctx context.Context, sess *agent.Session) error
	InspectMemory(ctx context.Context, sess *agent.Session) *agent.MemorySnapshot
	UploadDocument(ctx context.Context, sess *agent.Session, filename string, file io.Reader, prompt string) (*agent.UploadResult, error)
}

// PendingUpload is a file picked by the user together with an optional prompt.
type PendingUpload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
	Prompt   string
}

// Controller owns the session, the message log and the input flags of one widget.
type Controller struct {
	agent    Agent
	session  *agent.Session
	logger   *slog.Logger
	now      func() time.Time
	botName  string
	greeting string
	observer func(Event)

	mu               sync.Mutex
	messages         []ChatMessage
	flags            Flags
	decisionServices bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithBotName sets the display name of agent messages.
func WithBotName(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.botName = name
		}
	}
}

// WithGreeting sets the first message shown and the one shown after a reset.
func WithGreeting(greeting string) Option {
	return func(c *Controller) {
		if greeting != "" {
			c.greeting = greeting
		}
	}
}

// WithClock sets the clock used for display timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithDecisionServices sets the initial decision-services flag.
func WithDecisionServices(enabled bool) Option {
	return func(c *Controller) {
		c.decisionServices = enabled
	}
}

// WithSession continues an existing backend conversation instead of starting a new one.
func WithSession(sess *agent.Session) Option {
	return func(c *Controller) {
		if sess != nil {
			c.session = sess
		}
	}
}

// WithObserver registers fn to receive every log and flag change.
// fn is called synchronously, without the controller lock held.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// NewController creates a controller in the initializing state, with the
// greeting as its only message.
func NewController(a Agent, opts ...Option) *Controller {
	c := &Controller{
		agent:    a,
		session:  &agent.Session{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		botName:  DefaultBotName,
		greeting: DefaultGreeting,
		flags:    Flags{Initializing: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.messages = []ChatMessage{c.greetingMessage()}
	return c
}

// Initialize starts the backend conversation and moves to the ready state.
// A session handed in through WithSession is kept as is.
func (c *Controller) Initialize(ctx context.Context) {
	if c.session.Empty() {
		id := c.agent.Initialize(ctx, c.session)
		c.logger.Debug("conversation initialized", "conversation_id", id, "local", agent.IsFallbackID(id))
	}

	c.mu.Lock()
	c.flags.Initializing = false
	flags := c.flags
	c.mu.Unlock()
	c.emit(Event{Type: EventFlags, Flags: flags})
}

// Send posts text to the agent. Blank text is ignored. The user message is
// appended before the request is issued, and the reply (or a failure notice)
// once it completes.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	useDE, err := c.begin()
	if err != nil {
		return err
	}
	defer c.end()

	ts := c.now().Format(timestampLayout)
	c.append(newMessage("You "+ts, text, Sent, KindText, c.now()))

	name := c.replyName(useDE, ts)
	reply, err := c.agent.Send(ctx, c.session, text, useDE)
	if err != nil {
		c.logger.Error("send failed", "error", err, "conversation_id", c.session.ID())
		c.append(newMessage(name, FailedReplyBody, Received, KindError, c.now()))
		return err
	}

	kind := KindText
	if reply.IsError() {
		kind = KindError
	}
	c.append(newMessage(name, reply.Output, Received, kind, c.now()))
	return nil
}

// Upload posts a PDF to the agent. With a non-blank prompt the prompt and the
// agent answer are added to the log after the upload notice.
func (c *Controller) Upload(ctx context.Context, up PendingUpload) error {
	if up.Filename == "" || up.Open == nil {
		return ErrNoFile
	}
	useDE, err := c.begin()
	if err != nil {
		return err
	}
	defer c.end()

	name := filepath.Base(up.Filename)
	result, err := c.upload(ctx, name, up)
	if err != nil {
		c.logger.Error("upload failed", "error", err, "file", name)
		c.append(newMessage(SystemName, fmt.Sprintf("Error uploading PDF: %v", err), Received, KindError, c.now()))
		return err
	}

	c.append(newMessage(SystemName, fmt.Sprintf("PDF \"%s\" uploaded successfully.", name), Received, KindSystem, c.now()))

	prompt := strings.TrimSpace(up.Prompt)
	if prompt == "" {
		return nil
	}
	ts := c.now().Format(timestampLayout)
	c.append(newMessage("You "+ts, fmt.Sprintf("%s (regarding the uploaded PDF: %s)", prompt, name), Sent, KindText, c.now()))

	body := result.Text()
	if body == "" {
		body = NoResponseBody
	}
	kind := KindText
	if result.IsError() {
		kind = KindError
	}
	c.append(newMessage(c.replyName(useDE, ts), body, Received, kind, c.now()))
	return nil
}

func (c *Controller) upload(ctx context.Context, name string, up PendingUpload) (*agent.UploadResult, error) {
	f, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()
	return c.agent.UploadDocument(ctx, c.session, name, f, up.Prompt)
}

// Reset discards the conversation. Whatever the backend says, the log is
// replaced by a single fresh greeting.
func (c *Controller) Reset(ctx context.Context) error {
	if _, err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	err := c.agent.Reset(ctx, c.session)
	if err != nil {
		c.logger.Warn("reset notification failed", "error", err)
	}

	greeting := c.greetingMessage()
	c.mu.Lock()
	c.messages = []ChatMessage{greeting}
	c.mu.Unlock()
	c.emit(Event{Type: EventReplaced, Messages: []ChatMessage{greeting}})
	return err
}

// Inspect appends a dump of the server-side memory. Nothing happens when no
// conversation exists yet.
func (c *Controller) Inspect(ctx context.Context) error {
	if _, err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if c.session.Empty() {
		return nil
	}

	snap := c.agent.InspectMemory(ctx, c.session)
	if !snap.OK() {
		reason := "Unknown error"
		if snap != nil && snap.Message != "" {
			reason = snap.Message
		}
		c.append(newMessage(SystemName, "Failed to retrieve memory: "+reason, Received, KindError, c.now()))
		return fmt.Errorf("retrieving memory: %s", reason)
	}

	body := fmt.Sprintf("Memory Contents:\n```json\n%s\n```\nMemory Size: %d characters", IndentJSON(snap.Memory), snap.MemorySize)
	c.append(newMessage(SystemName, body, Received, KindSystem, c.now()))
	return nil
}

// SetDecisionServices selects the endpoint used by subsequent sends.
func (c *Controller) SetDecisionServices(enabled bool) {
	c.mu.Lock()
	c.decisionServices = enabled
	c.mu.Unlock()
}

// DecisionServices reports whether sends go to the decision-services endpoint.
func (c *Controller) DecisionServices() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decisionServices
}

// BackendLabel names the endpoint currently selected.
func (c *Controller) BackendLabel() string {
	return BackendLabel(c.DecisionServices())
}

// BackendLabel names the endpoint selected by the decision-services flag.
func BackendLabel(decisionServices bool) string {
	if decisionServices {
		return "Decision Services"
	}
	return "RAG"
}

// BotName returns the display name of agent messages.
func (c *Controller) BotName() string {
	return c.botName
}

// Messages returns a copy of the log.
func (c *Controller) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Flags returns the current input flags.
func (c *Controller) Flags() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// ConversationID returns the backend conversation id, "" before initialization.
func (c *Controller) ConversationID() string {
	return c.session.ID()
}

// begin claims the busy flag. It fails while initializing or when another
// operation holds the flag, before any request is made.
func (c *Controller) begin() (bool, error) {
	c.mu.Lock()
	switch {
	case c.flags.Initializing:
		c.mu.Unlock()
		return false, ErrNotReady
	case c.flags.Busy:
		c.mu.Unlock()
		return false, ErrBusy
	}
	c.flags.Busy = true
	flags := c.flags
	useDE := c.decisionServices
	c.mu.Unlock()

	c.emit(Event{Type: EventFlags, Flags: flags})
	return useDE, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.flags.Busy = false
	flags := c.flags
	c.mu.Unlock()
	c.emit(Event{Type: EventFlags, Flags: flags})
}

func (c *Controller) append(m ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	c.emit(Event{Type: EventAppended, Message: m})
}

func (c *Controller) emit(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}

func (c *Controller) greetingMessage() ChatMessage {
	return newMessage(c.botName, c.greeting, Received, KindText, c.now())
}

func (c *Controller) replyName(useDE bool, ts string) string {
	return fmt.Sprintf("%s (%s) %s", c.botName, BackendLabel(useDE), ts)
}

// IndentJSON pretty-prints raw JSON with two-space indentation, keeping key
// order. Empty input becomes null and invalid input is returned unchanged.
func IndentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

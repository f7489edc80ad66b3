package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/rulechat/internal/agent"
)

// fakeAgent implements Agent and records calls in order.
type fakeAgent struct {
	mu    sync.Mutex
	calls []string

	initID    string
	reply     *agent.Reply
	sendErr   error
	resetErr  error
	snapshot  *agent.MemorySnapshot
	upload    *agent.UploadResult
	uploadErr error

	// When set, Send blocks until the channel is closed.
	block    chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	lastSend struct {
		id   string
		text string
		de   bool
	}
	lastUpload struct {
		name   string
		data   string
		prompt string
	}
}

func (f *fakeAgent) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAgent) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAgent) Initialize(ctx context.Context, sess *agent.Session) string {
	f.record("initialize")
	id := f.initID
	if id == "" {
		id = "local-1"
	}
	sess.SetID(id)
	return id
}

func (f *fakeAgent) Send(ctx context.Context, sess *agent.Session, message string, de bool) (*agent.Reply, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.record("send")
	if sess.Empty() {
		f.Initialize(ctx, sess)
	}
	f.mu.Lock()
	f.lastSend.id = sess.ID()
	f.lastSend.text = message
	f.lastSend.de = de
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &agent.Reply{Input: message, Output: "echo: " + message, Type: "text"}, nil
}

func (f *fakeAgent) Reset(ctx context.Context, sess *agent.Session) error {
	f.record("reset")
	if sess.Empty() {
		return nil
	}
	sess.SetID("after-reset")
	return f.resetErr
}

func (f *fakeAgent) InspectMemory(ctx context.Context, sess *agent.Session) *agent.MemorySnapshot {
	f.record("inspect")
	if sess.Empty() {
		return nil
	}
	return f.snapshot
}

func (f *fakeAgent) UploadDocument(ctx context.Context, sess *agent.Session, filename string, file io.Reader, prompt string) (*agent.UploadResult, error) {
	f.record("upload")
	data, _ := io.ReadAll(file)
	f.mu.Lock()
	f.lastUpload.name = filename
	f.lastUpload.data = string(data)
	f.lastUpload.prompt = prompt
	f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if f.upload != nil {
		return f.upload, nil
	}
	return &agent.UploadResult{}, nil
}

var testNow = time.Date(2025, 3, 26, 14, 5, 0, 0, time.UTC)

func newTestController(t *testing.T, fa *fakeAgent, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewController(fa, opts...)
}

func readyController(t *testing.T, fa *fakeAgent, opts ...Option) *Controller {
	t.Helper()
	c := newTestController(t, fa, opts...)
	c.Initialize(context.Background())
	return c
}

func pdf(name, data, prompt string) PendingUpload {
	return PendingUpload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(data)), nil
		},
		Prompt: prompt,
	}
}

func TestNewControllerStartsInitializing(t *testing.T) {
	c := newTestController(t, &fakeAgent{})

	assert.True(t, c.Flags().Initializing)
	assert.False(t, c.Flags().Ready())
	assert.Equal(t, "initializing", c.Flags().State())

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, DefaultBotName, msgs[0].DisplayName)
	assert.Equal(t, DefaultGreeting, msgs[0].Body)
	assert.Equal(t, Received, msgs[0].Direction)
}

func TestOperationsRejectedWhileInitializing(t *testing.T) {
	fa := &fakeAgent{}
	c := newTestController(t, fa)

	assert.ErrorIs(t, c.Send(context.Background(), "hi"), ErrNotReady)
	assert.ErrorIs(t, c.Reset(context.Background()), ErrNotReady)
	assert.ErrorIs(t, c.Inspect(context.Background()), ErrNotReady)
	assert.ErrorIs(t, c.Upload(context.Background(), pdf("a.pdf", "x", "")), ErrNotReady)
	assert.Empty(t, fa.Calls())
	assert.Len(t, c.Messages(), 1)
}

func TestInitialize(t *testing.T) {
	fa := &fakeAgent{initID: "conv-1"}
	c := readyController(t, fa)

	assert.Equal(t, "conv-1", c.ConversationID())
	assert.Equal(t, "ready", c.Flags().State())
	assert.Equal(t, []string{"initialize"}, fa.Calls())
}

func TestInitializeKeepsGivenSession(t *testing.T) {
	fa := &fakeAgent{}
	c := readyController(t, fa, WithSession(agent.NewSession("existing")))

	assert.Equal(t, "existing", c.ConversationID())
	assert.Empty(t, fa.Calls())
	assert.True(t, c.Flags().Ready())
}

func TestSendBlankIsNoop(t *testing.T) {
	fa := &fakeAgent{}
	c := readyController(t, fa)

	for _, text := range []string{"", " ", "\t\n  "} {
		require.NoError(t, c.Send(context.Background(), text))
	}
	assert.Equal(t, []string{"initialize"}, fa.Calls())
	assert.Len(t, c.Messages(), 1)
}

func TestSendFromEmptySession(t *testing.T) {
	fa := &fakeAgent{initID: "fresh"}
	c := newTestController(t, fa)
	// Skip the controller's own initialization to start with an empty session.
	c.flags.Initializing = false

	require.NoError(t, c.Send(context.Background(), "hello"))

	assert.Equal(t, []string{"send", "initialize"}, fa.Calls())
	assert.Equal(t, "fresh", fa.lastSend.id)
	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Sent, msgs[1].Direction)
	assert.Equal(t, "hello", msgs[1].Body)
	assert.Equal(t, Received, msgs[2].Direction)
	assert.Equal(t, "echo: hello", msgs[2].Body)
}

func TestSendAppendsSentAndReceived(t *testing.T) {
	tests := []struct {
		name     string
		de       bool
		reply    *agent.Reply
		sendErr  error
		wantBody string
		wantKind Kind
		wantName string
		wantErr  bool
	}{
		{
			name:     "text reply via rag",
			reply:    &agent.Reply{Output: "42", Type: "text"},
			wantBody: "42",
			wantKind: KindText,
			wantName: "Bot (RAG) 14:05",
		},
		{
			name:     "text reply via decision services",
			de:       true,
			reply:    &agent.Reply{Output: "approved", Type: "text"},
			wantBody: "approved",
			wantKind: KindText,
			wantName: "Bot (Decision Services) 14:05",
		},
		{
			name:     "error payload",
			reply:    &agent.Reply{Output: "Please provide a message", Type: "error"},
			wantBody: "Please provide a message",
			wantKind: KindError,
			wantName: "Bot (RAG) 14:05",
		},
		{
			name:     "untyped reply",
			reply:    &agent.Reply{Output: "plain"},
			wantBody: "plain",
			wantKind: KindText,
			wantName: "Bot (RAG) 14:05",
		},
		{
			name:     "transport failure",
			sendErr:  errors.New("connection refused"),
			wantBody: FailedReplyBody,
			wantKind: KindError,
			wantName: "Bot (RAG) 14:05",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAgent{reply: tt.reply, sendErr: tt.sendErr}
			c := readyController(t, fa, WithDecisionServices(tt.de))

			err := c.Send(context.Background(), "question")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			msgs := c.Messages()
			require.Len(t, msgs, 3)
			assert.Equal(t, "You 14:05", msgs[1].DisplayName)
			assert.Equal(t, Sent, msgs[1].Direction)
			assert.Equal(t, KindText, msgs[1].Kind)

			got := msgs[2]
			assert.Equal(t, Received, got.Direction)
			assert.Equal(t, tt.wantBody, got.Body)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantName, got.DisplayName)
			assert.Equal(t, tt.de, fa.lastSend.de)
			assert.True(t, c.Flags().Ready())
		})
	}
}

func TestSentMessageIsAppendedBeforeReply(t *testing.T) {
	fa := &fakeAgent{block: make(chan struct{})}
	c := readyController(t, fa)

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "hello") }()

	require.Eventually(t, func() bool { return len(c.Messages()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "hello", c.Messages()[1].Body)
	assert.True(t, c.Flags().Busy)

	close(fa.block)
	require.NoError(t, <-done)
	assert.Len(t, c.Messages(), 3)
	assert.False(t, c.Flags().Busy)
}

func TestAtMostOneOperationInFlight(t *testing.T) {
	fa := &fakeAgent{block: make(chan struct{})}
	c := readyController(t, fa)

	first := make(chan error, 1)
	go func() { first <- c.Send(context.Background(), "one") }()
	require.Eventually(t, func() bool { return c.Flags().Busy }, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	var busy atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			switch i % 4 {
			case 0:
				err = c.Send(context.Background(), "two")
			case 1:
				err = c.Reset(context.Background())
			case 2:
				err = c.Inspect(context.Background())
			case 3:
				err = c.Upload(context.Background(), pdf("a.pdf", "x", "p"))
			}
			if errors.Is(err, ErrBusy) {
				busy.Add(1)
			}
		}(i)
	}
	wg.Wait()

	close(fa.block)
	require.NoError(t, <-first)

	assert.Equal(t, int32(20), busy.Load())
	assert.Equal(t, int32(1), fa.maxSeen.Load())
	assert.Equal(t, []string{"initialize", "send"}, fa.Calls())
}

func TestUploadWithoutPrompt(t *testing.T) {
	fa := &fakeAgent{upload: &agent.UploadResult{Output: "ignored"}}
	c := readyController(t, fa)

	require.NoError(t, c.Upload(context.Background(), pdf("/tmp/docs/form.pdf", "%PDF", "   ")))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindSystem, msgs[1].Kind)
	assert.Equal(t, SystemName, msgs[1].DisplayName)
	assert.Equal(t, `PDF "form.pdf" uploaded successfully.`, msgs[1].Body)
	assert.Equal(t, "form.pdf", fa.lastUpload.name)
	assert.Equal(t, "%PDF", fa.lastUpload.data)
}

func TestUploadWithPrompt(t *testing.T) {
	tests := []struct {
		name     string
		result   *agent.UploadResult
		wantBody string
		wantKind Kind
	}{
		{"output preferred", &agent.UploadResult{Output: "out", FinalResponse: "final"}, "out", KindText},
		{"final response fallback", &agent.UploadResult{FinalResponse: "final"}, "final", KindText},
		{"no response", &agent.UploadResult{}, NoResponseBody, KindText},
		{"error type", &agent.UploadResult{Output: "bad form", Type: "error"}, "bad form", KindError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAgent{upload: tt.result}
			c := readyController(t, fa, WithDecisionServices(true))

			require.NoError(t, c.Upload(context.Background(), pdf("form.pdf", "%PDF", "Validate this")))

			msgs := c.Messages()[1:]
			require.Len(t, msgs, 3)
			assert.Equal(t, KindSystem, msgs[0].Kind)
			assert.Equal(t, Sent, msgs[1].Direction)
			assert.Equal(t, "Validate this (regarding the uploaded PDF: form.pdf)", msgs[1].Body)
			assert.Equal(t, Received, msgs[2].Direction)
			assert.Equal(t, "Bot (Decision Services) 14:05", msgs[2].DisplayName)
			assert.Equal(t, tt.wantBody, msgs[2].Body)
			assert.Equal(t, tt.wantKind, msgs[2].Kind)
			assert.Equal(t, "Validate this", fa.lastUpload.prompt)
		})
	}
}

func TestUploadFailure(t *testing.T) {
	fa := &fakeAgent{uploadErr: &agent.StatusError{Op: "upload", StatusCode: 500}}
	c := readyController(t, fa)

	err := c.Upload(context.Background(), pdf("form.pdf", "%PDF", "Validate"))
	require.Error(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindError, msgs[1].Kind)
	assert.Equal(t, SystemName, msgs[1].DisplayName)
	assert.Equal(t, "Error uploading PDF: upload failed with status: 500", msgs[1].Body)
	assert.True(t, c.Flags().Ready())
}

func TestUploadOpenFailure(t *testing.T) {
	fa := &fakeAgent{}
	c := readyController(t, fa)

	err := c.Upload(context.Background(), PendingUpload{
		Filename: "missing.pdf",
		Open:     func() (io.ReadCloser, error) { return nil, errors.New("no such file") },
	})
	require.Error(t, err)
	assert.Equal(t, []string{"initialize"}, fa.Calls())
	assert.Len(t, c.Messages(), 2)
}

func TestUploadWithoutFile(t *testing.T) {
	c := readyController(t, &fakeAgent{})
	assert.ErrorIs(t, c.Upload(context.Background(), PendingUpload{}), ErrNoFile)
	assert.Len(t, c.Messages(), 1)
}

func TestResetLeavesOnlyGreeting(t *testing.T) {
	tests := []struct {
		name     string
		resetErr error
	}{
		{"backend ok", nil},
		{"backend failure", errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAgent{resetErr: tt.resetErr}
			c := readyController(t, fa, WithGreeting("Hello again"))
			for i := 0; i < 5; i++ {
				require.NoError(t, c.Send(context.Background(), "msg"))
			}
			require.Len(t, c.Messages(), 11)
			before := c.Messages()[0].ID

			err := c.Reset(context.Background())
			assert.Equal(t, tt.resetErr, err)

			msgs := c.Messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, "Hello again", msgs[0].Body)
			assert.NotEqual(t, before, msgs[0].ID)
			assert.Equal(t, "after-reset", c.ConversationID())
			assert.True(t, c.Flags().Ready())
		})
	}
}

func TestInspect(t *testing.T) {
	fa := &fakeAgent{snapshot: &agent.MemorySnapshot{
		Status:     "success",
		Memory:     json.RawMessage(`{"history":"Human: hi"}`),
		MemorySize: 9,
	}}
	c := readyController(t, fa)

	require.NoError(t, c.Inspect(context.Background()))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindSystem, msgs[1].Kind)
	assert.Equal(t, "Memory Contents:\n```json\n{\n  \"history\": \"Human: hi\"\n}\n```\nMemory Size: 9 characters", msgs[1].Body)
}

func TestInspectFailures(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *agent.MemorySnapshot
		wantBody string
	}{
		{"nil snapshot", nil, "Failed to retrieve memory: Unknown error"},
		{"error status", &agent.MemorySnapshot{Status: "error", Message: "No memory found for conversation ID: x"}, "Failed to retrieve memory: No memory found for conversation ID: x"},
		{"error status without message", &agent.MemorySnapshot{Status: "error"}, "Failed to retrieve memory: Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := readyController(t, &fakeAgent{snapshot: tt.snapshot})

			require.Error(t, c.Inspect(context.Background()))

			msgs := c.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, KindError, msgs[1].Kind)
			assert.Equal(t, tt.wantBody, msgs[1].Body)
		})
	}
}

func TestInspectWithoutSessionAppendsNothing(t *testing.T) {
	fa := &fakeAgent{}
	c := newTestController(t, fa)
	c.flags.Initializing = false

	require.NoError(t, c.Inspect(context.Background()))
	assert.Empty(t, fa.Calls())
	assert.Len(t, c.Messages(), 1)
}

func TestMessageIDsAreUnique(t *testing.T) {
	c := readyController(t, &fakeAgent{})
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Send(context.Background(), "hi"))
	}

	seen := make(map[string]bool)
	for _, m := range c.Messages() {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestDecisionServicesToggle(t *testing.T) {
	fa := &fakeAgent{}
	c := readyController(t, fa)
	assert.Equal(t, "RAG", c.BackendLabel())

	c.SetDecisionServices(true)
	assert.True(t, c.DecisionServices())
	assert.Equal(t, "Decision Services", c.BackendLabel())

	require.NoError(t, c.Send(context.Background(), "q"))
	assert.True(t, fa.lastSend.de)
}

func TestObserverSeesEveryChange(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	var log []ChatMessage

	fa := &fakeAgent{}
	c := newTestController(t, fa, WithObserver(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
		log = e.Apply(log)
	}))
	log = c.Messages()

	c.Initialize(context.Background())
	require.NoError(t, c.Send(context.Background(), "hi"))
	require.NoError(t, c.Reset(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventFlags,
		EventFlags, EventAppended, EventAppended, EventFlags,
		EventFlags, EventReplaced, EventFlags,
	}, types)
	assert.Equal(t, c.Messages(), log)
}

func TestIndentJSON(t *testing.T) {
	assert.Equal(t, "null", IndentJSON(nil))
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    2\n  ]\n}", IndentJSON(json.RawMessage(`{"b":1,"a":[2]}`)))
	assert.Equal(t, "{broken", IndentJSON(json.RawMessage(`{broken`)))
}

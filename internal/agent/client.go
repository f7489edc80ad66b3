// Package agent is the HTTP client for the rule agent backend.
//
// Every call takes the Session it operates on, so one Client can serve any
// number of independent conversations:
//
//	client := agent.NewClient("http://localhost:9000")
//	sess := &agent.Session{}
//	reply, err := client.Send(ctx, sess, "hello", false)
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// BasePath is the route prefix of every backend endpoint.
	BasePath = "/rule-agent"

	// UploadField is the multipart field the backend reads the PDF from.
	UploadField = "form_file"

	// FallbackPrefix marks conversation ids minted locally when the backend is unreachable.
	FallbackPrefix = "local-"

	endpointWithTools    = "chat_with_tools"
	endpointWithoutTools = "chat_without_tools"
)

// Client talks to the rule agent backend. It holds no conversation state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a per-request timeout on the HTTP client. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing and soft failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock sets the clock used to mint fallback conversation ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Initialize asks the backend for a new conversation id and adopts it.
// If the backend cannot be reached or answers garbage, a local id is minted
// instead so the caller can carry on in a degraded mode. It never fails.
func (c *Client) Initialize(ctx context.Context, sess *Session) string {
	id, err := c.startConversation(ctx)
	if err != nil {
		id = c.fallbackID()
		c.logger.Warn("start conversation failed, using local id", "error", err, "conversation_id", id)
	}
	sess.SetID(id)
	return id
}

func (c *Client) startConversation(ctx context.Context) (string, error) {
	body, _, err := c.do(ctx, http.MethodGet, "start_conversation", nil, nil, "")
	if err != nil {
		return "", err
	}

	var result startResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ConversationID == "" {
		return "", fmt.Errorf("no conversation id in response")
	}
	return result.ConversationID, nil
}

// ensure initializes sess if it has no id yet and returns the id to use.
func (c *Client) ensure(ctx context.Context, sess *Session) string {
	if id := sess.ID(); id != "" {
		return id
	}
	return c.Initialize(ctx, sess)
}

// Send submits a user message. useDecisionServices selects the endpoint that
// lets the agent call decision services; otherwise the RAG-only endpoint is used.
func (c *Client) Send(ctx context.Context, sess *Session, message string, useDecisionServices bool) (*Reply, error) {
	id := c.ensure(ctx, sess)

	endpoint := endpointWithoutTools
	if useDecisionServices {
		endpoint = endpointWithTools
	}
	query := url.Values{}
	query.Set("userMessage", message)
	query.Set("conversationId", id)

	// The backend reports bad input as a JSON reply, so the status is not checked.
	body, _, err := c.do(ctx, http.MethodGet, endpoint, query, nil, "")
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if reply.ConversationID != "" {
		sess.SetID(reply.ConversationID)
	}
	return &reply, nil
}

// Reset asks the backend to drop the conversation memory and then starts a new
// conversation. It is a no-op for an empty session. If the backend cannot be
// notified a local id is minted anyway and the failure is returned.
func (c *Client) Reset(ctx context.Context, sess *Session) error {
	id := sess.ID()
	if id == "" {
		return nil
	}

	query := url.Values{}
	query.Set("conversationId", id)
	_, status, err := c.do(ctx, http.MethodPost, "reset_memory", query, nil, "")
	if err == nil && !isSuccess(status) {
		err = &StatusError{Op: "reset", StatusCode: status}
	}
	if err != nil {
		fallback := c.fallbackID()
		sess.SetID(fallback)
		c.logger.Warn("reset memory failed, using local id", "error", err, "conversation_id", fallback)
		return fmt.Errorf("resetting conversation: %w", err)
	}

	c.Initialize(ctx, sess)
	return nil
}

// InspectMemory fetches the server-side memory of the conversation. It returns
// nil for an empty session and when the backend cannot be reached or decoded.
// Error statuses still return the decoded snapshot, which carries the reason.
func (c *Client) InspectMemory(ctx context.Context, sess *Session) *MemorySnapshot {
	id := sess.ID()
	if id == "" {
		c.logger.Debug("inspect memory skipped: no active conversation")
		return nil
	}

	query := url.Values{}
	query.Set("conversationId", id)
	body, _, err := c.do(ctx, http.MethodGet, "inspect_memory", query, nil, "")
	if err != nil {
		c.logger.Warn("inspect memory failed", "error", err, "conversation_id", id)
		return nil
	}

	var snapshot MemorySnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		c.logger.Warn("inspect memory returned invalid JSON", "error", err, "conversation_id", id)
		return nil
	}
	return &snapshot
}

// UploadDocument posts a PDF, with an optional prompt about it, to the conversation.
func (c *Client) UploadDocument(ctx context.Context, sess *Session, filename string, file io.Reader, prompt string) (*UploadResult, error) {
	id := c.ensure(ctx, sess)

	query := url.Values{}
	query.Set("conversationId", id)
	if p := strings.TrimSpace(prompt); p != "" {
		query.Set("prompt", p)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "upload_pdf", query, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}
	if !isSuccess(status) {
		return nil, &StatusError{Op: "upload", StatusCode: status, Body: strings.TrimSpace(string(body))}
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return &result, nil
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	body, status, err := c.do(ctx, http.MethodGet, "health", nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if !isSuccess(status) {
		return nil, &StatusError{Op: "health", StatusCode: status, Body: strings.TrimSpace(string(body))}
	}

	var health HealthStatus
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return &health, nil
}

// do issues one request against BasePath/endpoint and returns the raw body and status.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, contentType string) ([]byte, int, error) {
	u := c.baseURL + BasePath + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("error reading response: %w", err)
	}

	c.logger.Debug("backend request",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", c.now().Sub(start))
	return data, resp.StatusCode, nil
}

func (c *Client) fallbackID() string {
	return fmt.Sprintf("%s%d", FallbackPrefix, c.now().UnixMilli())
}

// IsFallbackID reports whether id was minted locally rather than by the backend.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, FallbackPrefix)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

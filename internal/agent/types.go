package agent

import (
	"encoding/json"
	"fmt"
)

// Response type reported by the backend when it could not answer.
const TypeError = "error"

// Memory inspection status reported on success.
const StatusSuccess = "success"

// startResponse is the body of GET /rule-agent/start_conversation.
type startResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message,omitempty"`
	Status         string `json:"status,omitempty"`
}

// Reply is the body of the chat_with_tools / chat_without_tools endpoints.
type Reply struct {
	Input          string `json:"input"`
	Output         string `json:"output"`
	Type           string `json:"type"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// IsError reports whether the backend flagged the reply as an error.
func (r *Reply) IsError() bool {
	return r.Type == TypeError
}

// MemorySnapshot is the body of GET /rule-agent/inspect_memory.
// Memory is kept raw so it can be pretty-printed as received.
type MemorySnapshot struct {
	Status         string          `json:"status"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Memory         json.RawMessage `json:"memory,omitempty"`
	MemorySize     int             `json:"memory_size"`
	Message        string          `json:"message,omitempty"`
}

// OK reports whether the backend returned the memory successfully.
func (m *MemorySnapshot) OK() bool {
	return m != nil && m.Status == StatusSuccess
}

// UploadResult is the body of POST /rule-agent/upload_pdf.
type UploadResult struct {
	Output        string `json:"output,omitempty"`
	FinalResponse string `json:"final_response,omitempty"`
	Type          string `json:"type,omitempty"`
	Success       *bool  `json:"success,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Text returns the most relevant answer text, or "" when the backend gave none.
func (u *UploadResult) Text() string {
	if u.Output != "" {
		return u.Output
	}
	return u.FinalResponse
}

// IsError reports whether the backend flagged the answer as an error.
func (u *UploadResult) IsError() bool {
	return u.Type == TypeError
}

// HealthStatus is the body of GET /rule-agent/health.
type HealthStatus struct {
	Status              string `json:"status"`
	LLM                 string `json:"llm,omitempty"`
	RAGInitialized      bool   `json:"rag_initialized"`
	LangsmithConfigured bool   `json:"langsmith_configured"`
}

// StatusError is returned when the backend answers with a non-success HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status: %d: %s", e.Op, e.StatusCode, e.Body)
}

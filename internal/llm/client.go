package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/storebot/internal/models"
)

// ErrBackendUnavailable is returned once a transient failure has exhausted
// all retries.
var ErrBackendUnavailable = errors.New("backend_unavailable")

// ErrorKind classifies a backend failure for the retry policy.
type ErrorKind string

const (
	ErrorRateLimited ErrorKind = "rate_limited"
	ErrorServer      ErrorKind = "server"
	ErrorNetwork     ErrorKind = "network"
	ErrorBadRequest  ErrorKind = "bad_request"
)

// APIError is a typed backend failure. RetryAfter carries the backend's
// explicit retry hint when one was supplied.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying.
func (e *APIError) Transient() bool {
	switch e.Kind {
	case ErrorRateLimited, ErrorServer, ErrorNetwork:
		return true
	}
	return false
}

// Message is one chat message sent to the backend.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool is the schema of one callable exposed to the backend.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatResult is the backend's reply to one chat call.
type ChatResult struct {
	Content          string
	ToolCalls        []models.ToolCall
	PromptTokens     int
	CompletionTokens int
	Model            string
}

// Client is the AI backend consumed by the engine, always through the
// retry executor.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResult, error)
}

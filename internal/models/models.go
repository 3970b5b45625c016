package models

import "time"

// Intent is the abstract action a natural-language instruction maps to.
type Intent string

const (
	IntentRefund           Intent = "refund"
	IntentStatusUpdate     Intent = "status_update"
	IntentStockUpdate      Intent = "stock_update"
	IntentBulkStatusUpdate Intent = "bulk_status_update"
	IntentEmailDraft       Intent = "email_draft"
	IntentAnalytics        Intent = "analytics"
	IntentCustomerLookup   Intent = "customer_lookup"
	IntentSearch           Intent = "search"
	IntentFallback         Intent = "fallback"
)

// Classification is the result of scoring an instruction against all
// registered scorers.
type Classification struct {
	Intent Intent  `json:"intent"`
	Score  float64 `json:"score"`
	Scorer string  `json:"scorer"`
}

// ToolCall is a single function call emitted by the model during one
// engine invocation. Not persisted.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of dispatching one tool call.
type ToolResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Usage carries model/token accounting for one engine invocation.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Retries          int    `json:"retries"`
	Model            string `json:"model"`
}

// Response is the structured result of handling one instruction.
type Response struct {
	Message     string       `json:"message"`
	Intent      Intent       `json:"intent"`
	Usage       Usage        `json:"usage"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// MemoryEntry is one exchange in the bounded conversation memory.
type MemoryEntry struct {
	Time    time.Time `json:"time"`
	Input   string    `json:"input"`
	Intent  Intent    `json:"intent"`
	Message string    `json:"message"`
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/intent"
	"github.com/xaenox/storebot/internal/llm"
	"github.com/xaenox/storebot/internal/memory"
	"github.com/xaenox/storebot/internal/models"
	"github.com/xaenox/storebot/internal/tools"
)

// Boundary error codes.
const (
	CodeBackendUnavailable = "backend_unavailable"
	CodeInternal           = "internal_error"
)

// Request is the boundary-facing shape handed in by a transport layer.
type Request struct {
	Prompt   string         `json:"prompt"`
	Context  map[string]any `json:"context,omitempty"`
	Metadata Metadata       `json:"metadata,omitempty"`
}

type Metadata struct {
	UserID    int64  `json:"user_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorInfo describes a failed invocation.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Result is the boundary envelope: exactly one of Data and Error is set.
type Result struct {
	Success bool             `json:"success"`
	Data    *models.Response `json:"data,omitempty"`
	Error   *ErrorInfo       `json:"error,omitempty"`
}

// ContextProvider contributes ambient context (user, recent records, store
// facts) to each invocation, keyed by its name.
type ContextProvider interface {
	Name() string
	Provide(ctx context.Context, meta Metadata) (any, error)
}

// Engine orchestrates one instruction end to end: enrich context, recall
// memory, classify, resolve a handler, call the model with the handler's
// tools, dispatch tool calls, and return a structured result. No failure
// escapes as a fault; everything resolves to a Result.
type Engine struct {
	classifier *intent.Classifier
	handlers   *HandlerRegistry
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	executor   *llm.Executor
	memory     *memory.Log
	providers  []ContextProvider
	logger     *zap.Logger
}

func New(classifier *intent.Classifier, handlers *HandlerRegistry, registry *tools.Registry, dispatcher *tools.Dispatcher, executor *llm.Executor, mem *memory.Log, logger *zap.Logger) *Engine {
	return &Engine{
		classifier: classifier,
		handlers:   handlers,
		registry:   registry,
		dispatcher: dispatcher,
		executor:   executor,
		memory:     mem,
		logger:     logger,
	}
}

// AddProvider appends an ambient context provider. Providers run in
// registration order; a later provider with the same name wins.
func (e *Engine) AddProvider(p ContextProvider) {
	e.providers = append(e.providers, p)
}

func (e *Engine) Handle(ctx context.Context, req Request) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine panicked",
				zap.Any("panic", r),
				zap.String("request_id", req.Metadata.RequestID))
			result = failure(CodeInternal, "internal error", nil)
		}
	}()

	enriched := e.enrichContext(ctx, req)
	recalled := e.memory.Recall()

	classification := e.classifier.Classify(req.Prompt, enriched)
	handler := e.handlers.Resolve(classification.Intent)

	schemas := e.registry.Select(handler.Tools())
	llmTools := make([]llm.Tool, 0, len(schemas))
	for _, s := range schemas {
		llmTools = append(llmTools, s.LLMTool())
	}

	messages := e.buildMessages(handler, enriched, recalled, req.Prompt)
	reply, retries, err := e.executor.Chat(ctx, messages, llmTools)
	if err != nil {
		if errors.Is(err, llm.ErrBackendUnavailable) {
			return failure(CodeBackendUnavailable, "the assistant backend is unavailable, try again later", nil)
		}
		e.logger.Error("backend call failed",
			zap.String("request_id", req.Metadata.RequestID),
			zap.Error(err))
		return failure(CodeInternal, "could not process the instruction", nil)
	}

	var toolResults []models.ToolResult
	for _, call := range reply.ToolCalls {
		toolResults = append(toolResults, e.dispatcher.Dispatch(ctx, call))
	}

	response := &models.Response{
		Message: reply.Content,
		Intent:  classification.Intent,
		Usage: models.Usage{
			PromptTokens:     reply.PromptTokens,
			CompletionTokens: reply.CompletionTokens,
			Retries:          retries,
			Model:            reply.Model,
		},
		ToolResults: toolResults,
	}
	if response.Message == "" {
		response.Message = summarizeToolResults(toolResults)
	}

	e.remember(req, classification, response)

	return &Result{Success: true, Data: response}
}

func (e *Engine) enrichContext(ctx context.Context, req Request) map[string]any {
	enriched := make(map[string]any, len(req.Context)+len(e.providers))
	for k, v := range req.Context {
		enriched[k] = v
	}
	for _, p := range e.providers {
		value, err := p.Provide(ctx, req.Metadata)
		if err != nil {
			e.logger.Warn("context provider failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		enriched[p.Name()] = value
	}
	return enriched
}

func (e *Engine) buildMessages(handler Handler, enriched map[string]any, recalled []models.MemoryEntry, prompt string) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: handler.SystemPrompt()}}

	if len(enriched) > 0 {
		if data, err := json.Marshal(enriched); err == nil {
			messages = append(messages, llm.Message{
				Role:    llm.RoleSystem,
				Content: "Context: " + string(data),
			})
		}
	}

	if len(recalled) > 0 {
		var b strings.Builder
		b.WriteString("Recent exchanges:\n")
		for _, entry := range recalled {
			fmt.Fprintf(&b, "- operator: %s\n  assistant: %s\n", entry.Input, entry.Message)
		}
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.String()})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
}

// remember appends the exchange to memory. Best-effort: a failure here is
// never surfaced to the caller.
func (e *Engine) remember(req Request, classification models.Classification, response *models.Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("memory append failed", zap.Any("panic", r))
		}
	}()
	e.memory.Append(models.MemoryEntry{
		Time:    e.memory.Now(),
		Input:   req.Prompt,
		Intent:  classification.Intent,
		Message: response.Message,
	})
}

func summarizeToolResults(results []models.ToolResult) string {
	for _, r := range results {
		if !r.Success {
			return fmt.Sprintf("Tool %s failed: %s", r.Tool, r.Message)
		}
	}
	if len(results) > 0 {
		return "Done."
	}
	return ""
}

func failure(code, message string, meta map[string]any) *Result {
	return &Result{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, Meta: meta},
	}
}

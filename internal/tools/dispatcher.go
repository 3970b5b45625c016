package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/models"
)

// Tool-level failure codes. They are surfaced to the model as data, never
// as a fault of the overall request.
const (
	CodeToolNotFound    = "tool_not_found"
	CodeValidationError = "validation_error"
	CodeExecutionError  = "execution_error"
)

// ToolError carries a stable code through the dispatcher into the result.
type ToolError struct {
	Code    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Executor runs one tool call with already-validated arguments.
type Executor interface {
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, args map[string]any) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Dispatcher resolves tool calls to executors, validating arguments
// against the registered schema first. Executor failures, including
// panics, become JSON-safe failure results.
type Dispatcher struct {
	registry  *Registry
	executors map[string]Executor
	logger    *zap.Logger
}

func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		executors: make(map[string]Executor),
		logger:    logger,
	}
}

func (d *Dispatcher) Register(name string, ex Executor) {
	d.executors[name] = ex
}

func (d *Dispatcher) Dispatch(ctx context.Context, call models.ToolCall) models.ToolResult {
	ex, ok := d.executors[call.Name]
	if !ok {
		return failure(call.Name, CodeToolNotFound, fmt.Sprintf("unknown tool %q", call.Name))
	}

	args := make(map[string]any)
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return failure(call.Name, CodeValidationError, fmt.Sprintf("arguments are not valid JSON: %v", err))
		}
	}

	if schema, ok := d.registry.Get(call.Name); ok {
		if err := validateArgs(schema, args); err != nil {
			return failure(call.Name, CodeValidationError, err.Error())
		}
	}

	data, err := d.execute(ctx, call.Name, ex, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return failure(call.Name, toolErr.Code, toolErr.Message)
		}
		return failure(call.Name, CodeExecutionError, err.Error())
	}

	return models.ToolResult{Tool: call.Name, Success: true, Data: data}
}

func (d *Dispatcher) execute(ctx context.Context, name string, ex Executor, args map[string]any) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool executor panicked",
				zap.String("tool", name),
				zap.Any("panic", r))
			err = &ToolError{Code: CodeExecutionError, Message: fmt.Sprintf("tool %q panicked: %v", name, r)}
		}
	}()
	return ex.Execute(ctx, args)
}

func failure(tool, code, message string) models.ToolResult {
	return models.ToolResult{Tool: tool, Success: false, Code: code, Message: message}
}

// validateArgs checks required fields and JSON types against the schema.
func validateArgs(schema Schema, args map[string]any) error {
	for name, f := range schema.Fields {
		value, present := args[name]
		if !present {
			if f.Required {
				return fmt.Errorf("missing required argument %q", name)
			}
			continue
		}
		if !typeMatches(f.Type, value) {
			return fmt.Errorf("argument %q must be of type %s", name, f.Type)
		}
	}
	return nil
}

func typeMatches(fieldType string, value any) bool {
	if value == nil {
		return false
	}
	switch fieldType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		n, ok := value.(float64)
		return ok && n == float64(int64(n))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

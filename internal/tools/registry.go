package tools

import (
	"fmt"

	"github.com/xaenox/storebot/internal/llm"
)

// Field describes one tool argument.
type Field struct {
	Type        string `json:"type"` // "string", "number", "integer", "boolean", "array", "object"
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Schema describes a tool exposed to the model. Registered once at
// startup, read-only afterwards.
type Schema struct {
	Name        string
	Description string
	Fields      map[string]Field
}

// LLMTool renders the schema in the JSON-schema shape the backend expects.
func (s Schema) LLMTool() llm.Tool {
	properties := make(map[string]any, len(s.Fields))
	var required []string
	for name, f := range s.Fields {
		prop := map[string]any{"type": f.Type}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[name] = prop
		if f.Required {
			required = append(required, name)
		}
	}
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.Tool{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  params,
	}
}

// Registry is the name → schema map, populated once at startup.
type Registry struct {
	schemas map[string]Schema
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

func (r *Registry) Register(s Schema) error {
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("tool %q already registered", s.Name)
	}
	r.schemas[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

func (r *Registry) Get(name string) (Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Select returns the schemas for the given names, in registration order,
// skipping unknown names.
func (r *Registry) Select(names []string) []Schema {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []Schema
	for _, name := range r.order {
		if wanted[name] {
			out = append(out, r.schemas[name])
		}
	}
	return out
}

// Package tools defines the declarative tool surface agents invoke during a
// run: a name, a JSON-schema-described parameter set, a human-readable
// description, and an execute operation returning a result payload.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oneagenthq/oneagent/llm"
)

// Tool is a capability the model can call.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// DisplayResult is implemented by tool results that carry a human-readable
// rendering alongside the machine payload.
type DisplayResult interface {
	Display() string
}

type funcTool struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewFuncTool wraps a plain function as a Tool.
func NewFuncTool(name, description string, schema map[string]any, fn func(ctx context.Context, args json.RawMessage) (any, error)) Tool {
	return &funcTool{name: name, description: description, schema: schema, fn: fn}
}

func (t *funcTool) Name() string           { return t.name }
func (t *funcTool) Description() string    { return t.description }
func (t *funcTool) Schema() map[string]any { return t.schema }

func (t *funcTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, fmt.Errorf("tool %q has no execute function", t.name)
	}
	return t.fn(ctx, args)
}

// Definition converts a Tool into the wire shape providers send to models.
func Definition(t Tool) llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Schema:      t.Schema(),
	}
}

// Definitions converts a tool set for a provider request.
func Definitions(ts []Tool) []llm.ToolDefinition {
	if len(ts) == 0 {
		return nil
	}
	out := make([]llm.ToolDefinition, 0, len(ts))
	for _, t := range ts {
		out = append(out, Definition(t))
	}
	return out
}

// ResultPayload normalizes a tool result into a string the model can read.
func ResultPayload(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.RawMessage:
		return string(v)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

// ValidateName reports whether a tool name is usable for registration.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("invalid tool name %q: use letters, digits, underscore or dash, 3-64 chars, starting with a letter", name)
	}
	return nil
}

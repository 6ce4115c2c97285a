package flow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/oneagenthq/oneagent/tools"
)

func testTool(name string) tools.Tool {
	return tools.NewFuncTool(name, "test tool", map[string]any{"type": "object"},
		func(context.Context, json.RawMessage) (any, error) { return "ok", nil })
}

func TestRegisterAndGet(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	def := Definition{
		Name:         "status-check",
		Description:  "runs checks and reports status",
		Model:        "gpt-4o-mini",
		SystemPrompt: "run the checks",
		Tools:        []string{"report_status"},
	}
	if err := Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(def); err == nil {
		t.Error("duplicate registration must fail")
	}
	got, ok := Get("status-check")
	if !ok || got.Model != "gpt-4o-mini" {
		t.Errorf("get returned %+v, %v", got, ok)
	}
	if names := Names(); len(names) != 1 || names[0] != "status-check" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestRegister_Validation(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{name: "missing name", def: Definition{}, want: "name is required"},
		{name: "negative iterations", def: Definition{Name: "x", MaxIterations: -1}, want: "must not be negative"},
		{name: "bad tool name", def: Definition{Name: "x", Tools: []string{"9bad"}}, want: "tool name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Register(tt.def)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestUpsertReplacesAndDeleteRemoves(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	MustRegister(Definition{Name: "a", Model: "m1"})
	if err := Upsert(Definition{Name: "a", Model: "m2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ := Get("a")
	if got.Model != "m2" {
		t.Errorf("upsert did not replace: %+v", got)
	}
	if !Delete("a") {
		t.Error("delete should report removal")
	}
	if Delete("a") {
		t.Error("second delete should report absence")
	}
}

func TestAgentOptions_ResolvesTools(t *testing.T) {
	tools.Reset()
	t.Cleanup(tools.Reset)
	if err := tools.Register(testTool("echo_tool")); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	def := Definition{
		Name:          "echoer",
		Model:         "gpt-4o",
		SystemPrompt:  "echo things",
		Tools:         []string{"echo_tool"},
		MaxIterations: 5,
	}
	opts, err := def.AgentOptions()
	if err != nil {
		t.Fatalf("agent options: %v", err)
	}
	// model, system prompt, max iterations, one tool
	if len(opts) != 4 {
		t.Errorf("expected 4 options, got %d", len(opts))
	}
}

func TestAgentOptions_UnknownTool(t *testing.T) {
	tools.Reset()
	t.Cleanup(tools.Reset)

	def := Definition{Name: "broken", Tools: []string{"missing_tool"}}
	_, err := def.AgentOptions()
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Errorf("expected unregistered tool error, got %v", err)
	}
}

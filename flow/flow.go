// Package flow provides a registry of named agent presets. A preset is a
// reusable run configuration (model, system prompt, tool names) that
// schedulers and embedders look up by name instead of hand-wiring agents.
package flow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/tools"
)

// Definition describes a named agent preset.
type Definition struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Model         string   `json:"model,omitempty"`
	SystemPrompt  string   `json:"systemPrompt,omitempty"`
	Tools         []string `json:"tools,omitempty"`
	MaxIterations int      `json:"maxIterations,omitempty"`
	InputExample  string   `json:"inputExample,omitempty"`
}

// Validate checks the definition without touching the tool registry.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("flow definition is nil")
	}
	if d.Name == "" {
		return fmt.Errorf("flow name is required")
	}
	if d.MaxIterations < 0 {
		return fmt.Errorf("flow %q: max iterations must not be negative", d.Name)
	}
	for _, name := range d.Tools {
		if err := tools.ValidateName(name); err != nil {
			return fmt.Errorf("flow %q: %w", d.Name, err)
		}
	}
	return nil
}

// AgentOptions resolves the preset into agent construction options. Tool
// names are looked up in the global tool registry at call time, so a
// preset may be registered before its tools are.
func (d *Definition) AgentOptions() ([]agent.Option, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	opts := []agent.Option{}
	if d.Model != "" {
		opts = append(opts, agent.WithModel(d.Model))
	}
	if d.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(d.SystemPrompt))
	}
	if d.MaxIterations > 0 {
		opts = append(opts, agent.WithMaxIterations(d.MaxIterations))
	}
	for _, name := range d.Tools {
		t, ok := tools.Get(name)
		if !ok {
			return nil, fmt.Errorf("flow %q: tool %q is not registered", d.Name, name)
		}
		opts = append(opts, agent.WithTool(t))
	}
	return opts, nil
}

var (
	mu    sync.RWMutex
	flows = map[string]Definition{}
)

// Register adds a preset to the global registry.
func Register(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := flows[d.Name]; exists {
		return fmt.Errorf("flow %q already registered", d.Name)
	}
	flows[d.Name] = d
	return nil
}

// MustRegister registers a preset and panics on error.
func MustRegister(d Definition) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Upsert registers a preset or replaces an existing one with the same name.
func Upsert(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	flows[d.Name] = d
	return nil
}

// Get returns a preset by name.
func Get(name string) (Definition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := flows[name]
	return d, ok
}

// Names returns all registered preset names sorted alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(flows))
	for name := range flows {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns all registered presets sorted by name.
func All() []Definition {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Definition, 0, len(flows))
	for _, d := range flows {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes a preset by name.
func Delete(name string) bool {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := flows[name]; !ok {
		return false
	}
	delete(flows, name)
	return true
}

// Reset clears the registry. Intended for tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	flows = map[string]Definition{}
}

package tools

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{2,63}$`)

var (
	registryMu sync.RWMutex
	registry   = map[string]Tool{}
)

// Register adds a tool to the global registry. Registering a name twice is
// an error; use Upsert to replace.
func Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	if err := ValidateName(t.Name()); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	registry[t.Name()] = t
	return nil
}

// Upsert registers a tool or replaces an existing one with the same name.
func Upsert(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	if err := ValidateName(t.Name()); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t.Name()] = t
	return nil
}

// Get returns a registered tool by name.
func Get(name string) (Tool, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

// Exists reports whether a tool name is registered.
func Exists(name string) bool {
	_, ok := Get(name)
	return ok
}

// Delete removes a tool by name. Returns true if it existed.
func Delete(name string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; !ok {
		return false
	}
	delete(registry, name)
	return true
}

// Names returns all registered tool names sorted alphabetically.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns all registered tools sorted by name.
func All() []Tool {
	names := Names()
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, registry[name])
	}
	return out
}

// Reset clears the registry. Intended for tests only.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]Tool{}
}

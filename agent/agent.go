// Package agent runs one instruction against a provider, executing tool
// calls in a bounded loop until the model produces a final answer.
package agent

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/oneagenthq/oneagent/llm"
	"github.com/oneagenthq/oneagent/observe"
	"github.com/oneagenthq/oneagent/state"
	"github.com/oneagenthq/oneagent/tools"
)

const (
	defaultMaxIterations = 8
	maxIterationsCeiling = 64
)

// Agent executes non-interactive runs. Construct with New; zero values are
// not usable.
type Agent struct {
	provider        llm.Provider
	model           string
	systemPrompt    string
	toolset         []tools.Tool
	toolIndex       map[string]tools.Tool
	maxIterations   int
	maxOutputTokens int
	retry           RetryPolicy
	observer        observe.Sink
	store           state.Store
	sessionID       string
	config          Config
	logger          *slog.Logger
}

// Option customizes an Agent at construction time.
type Option func(*Agent) error

// WithSystemPrompt sets the system prompt for every run.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) error {
		a.systemPrompt = prompt
		return nil
	}
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = strings.TrimSpace(model)
		return nil
	}
}

// WithTool adds a tool to the run's tool set.
func WithTool(t tools.Tool) Option {
	return func(a *Agent) error {
		if t == nil {
			return fmt.Errorf("tool is nil")
		}
		if _, exists := a.toolIndex[t.Name()]; exists {
			return fmt.Errorf("tool %q added twice", t.Name())
		}
		a.toolset = append(a.toolset, t)
		a.toolIndex[t.Name()] = t
		return nil
	}
}

// WithTools adds several tools at once.
func WithTools(ts ...tools.Tool) Option {
	return func(a *Agent) error {
		for _, t := range ts {
			if err := WithTool(t)(a); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithMaxIterations bounds the tool loop.
func WithMaxIterations(n int) Option {
	return func(a *Agent) error {
		if n < 1 || n > maxIterationsCeiling {
			return fmt.Errorf("max iterations must be between 1 and %d", maxIterationsCeiling)
		}
		a.maxIterations = n
		return nil
	}
}

// WithMaxOutputTokens caps per-call output tokens.
func WithMaxOutputTokens(n int) Option {
	return func(a *Agent) error {
		if n < 0 {
			return fmt.Errorf("max output tokens must not be negative")
		}
		a.maxOutputTokens = n
		return nil
	}
}

// WithRetryPolicy overrides the per-call retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Agent) error {
		a.retry = normalizeRetryPolicy(p)
		return nil
	}
}

// WithObserver attaches a run event sink.
func WithObserver(sink observe.Sink) Option {
	return func(a *Agent) error {
		if sink != nil {
			a.observer = sink
		}
		return nil
	}
}

// WithState attaches a session store; runs append their messages to it.
func WithState(store state.Store) Option {
	return func(a *Agent) error {
		a.store = store
		return nil
	}
}

// WithSessionID pins the session id instead of generating one per run.
func WithSessionID(id string) Option {
	return func(a *Agent) error {
		a.sessionID = strings.TrimSpace(id)
		return nil
	}
}

// WithConfig applies a run configuration snapshot.
func WithConfig(cfg Config) Option {
	return func(a *Agent) error {
		a.config = normalizeConfig(cfg)
		return nil
	}
}

// WithLogger sets the structured logger for run progress.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// New builds an Agent around a provider.
func New(provider llm.Provider, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	a := &Agent{
		provider:      provider,
		toolIndex:     map[string]tools.Tool{},
		maxIterations: defaultMaxIterations,
		retry:         defaultRetryPolicy(),
		observer:      observe.NoopSink{},
		config:        normalizeConfig(DefaultConfig()),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Config returns the run configuration snapshot.
func (a *Agent) Config() Config { return a.config }

// ToolNames returns the names of the agent's tool set, in registration order.
func (a *Agent) ToolNames() []string {
	out := make([]string, 0, len(a.toolset))
	for _, t := range a.toolset {
		out = append(out, t.Name())
	}
	return out
}

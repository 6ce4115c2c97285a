// Package schedule runs flow presets on cron schedules. Each firing
// resolves the preset at run time, executes it once, and persists the
// run record as an artifact.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/artifact"
	"github.com/oneagenthq/oneagent/flow"
	"github.com/oneagenthq/oneagent/llm"
)

// Executor runs one resolved preset against an input.
type Executor func(ctx context.Context, def flow.Definition, input string) (*agent.RunResult, error)

// NewAgentExecutor builds an Executor that constructs a fresh agent per
// firing from the preset plus the given base options.
func NewAgentExecutor(provider llm.Provider, base ...agent.Option) Executor {
	return func(ctx context.Context, def flow.Definition, input string) (*agent.RunResult, error) {
		opts, err := def.AgentOptions()
		if err != nil {
			return nil, err
		}
		opts = append(opts, base...)
		a, err := agent.New(provider, opts...)
		if err != nil {
			return nil, err
		}
		return a.RunDetailed(ctx, input)
	}
}

// Scheduler owns the cron loop.
type Scheduler struct {
	cron       *cron.Cron
	exec       Executor
	artifacts  *artifact.Store
	logger     *slog.Logger
	runTimeout time.Duration
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the progress logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithArtifacts persists each firing's run record to the store.
func WithArtifacts(store *artifact.Store) Option {
	return func(s *Scheduler) { s.artifacts = store }
}

// WithRunTimeout bounds each firing. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.runTimeout = d }
}

// New builds a Scheduler around an executor.
func New(exec Executor, opts ...Option) (*Scheduler, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	s := &Scheduler{
		cron:   cron.New(),
		exec:   exec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add schedules a preset. The preset must be registered when the job is
// added; it is re-resolved at each firing so upserts take effect.
func (s *Scheduler) Add(spec, flowName, input string) (cron.EntryID, error) {
	flowName = strings.TrimSpace(flowName)
	if flowName == "" {
		return 0, fmt.Errorf("flow name is required")
	}
	if _, ok := flow.Get(flowName); !ok {
		return 0, fmt.Errorf("flow %q is not registered", flowName)
	}
	id, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		var cancel context.CancelFunc
		if s.runTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
			defer cancel()
		}
		if err := s.RunNow(ctx, flowName, input); err != nil {
			s.logger.Error("scheduled run failed", "flow", flowName, "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return id, nil
}

// RunNow executes one firing immediately, outside the cron loop.
func (s *Scheduler) RunNow(ctx context.Context, flowName, input string) error {
	def, ok := flow.Get(flowName)
	if !ok {
		return fmt.Errorf("flow %q is not registered", flowName)
	}

	started := time.Now()
	result, err := s.exec(ctx, def, input)
	if err != nil {
		return fmt.Errorf("run flow %q: %w", flowName, err)
	}
	s.logger.Info("scheduled run finished",
		"flow", flowName,
		"run_id", result.RunID,
		"iterations", result.Iterations,
		"elapsed", time.Since(started),
	)

	if s.artifacts != nil {
		if _, saveErr := s.artifacts.SaveRunRecord(ctx, result.RunID, result); saveErr != nil {
			s.logger.Warn("run record not saved", "run_id", result.RunID, "error", saveErr)
		}
	}
	return nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and returns a context that completes when
// in-flight jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// JobCount reports the number of scheduled jobs.
func (s *Scheduler) JobCount() int { return len(s.cron.Entries()) }

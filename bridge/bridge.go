// Package bridge runs one non-interactive agent execution and prints the
// machine-parseable result marker callers rely on.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/artifact"
	"github.com/oneagenthq/oneagent/flow"
	"github.com/oneagenthq/oneagent/observe"
	auditsqlite "github.com/oneagenthq/oneagent/observe/store/sqlite"
	"github.com/oneagenthq/oneagent/providers/factory"
	statefactory "github.com/oneagenthq/oneagent/state/factory"
	"github.com/oneagenthq/oneagent/statusreport"
	"github.com/oneagenthq/oneagent/tools"
)

// Optional persistence knobs read from the environment.
const (
	// EnvAuditDB enables the sqlite run-event audit trail.
	EnvAuditDB = "ONEAGENT_AUDIT_DB"
	// EnvSessionID resumes a stored session when a state backend is
	// configured (see state/factory).
	EnvSessionID = "ONEAGENT_SESSION_ID"
	// EnvTranscriptDir enables transcript persistence for completed runs.
	EnvTranscriptDir = "ONEAGENT_TRANSCRIPT_DIR"
)

// FlowName is the preset New publishes in the flow registry.
const FlowName = "bridge"

// MarkerPrefix starts the final stdout line. Calling processes split on
// the first colon-terminated prefix and parse the JSON remainder, so the
// prefix and the payload field order must never change.
const MarkerPrefix = "__ONEAGENT_RESULT__:"

// Marker statuses. These describe whether the execution attempt itself
// completed, independent of what the agent reported about its task.
const (
	MarkerSuccess = "success"
	MarkerFailure = "failure"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// markerPayload is the JSON body after the prefix. Field order matters.
type markerPayload struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// Runner is the single-run surface the bridge drives. *agent.Agent
// satisfies it.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Config carries the caller-supplied inputs. Everything else the engine
// needs is forced by the bridge.
type Config struct {
	// Provider selects the completion backend; blank auto-detects.
	Provider string
	// Model overrides the provider default.
	Model string
	// APIKey and BaseURL configure the provider; flags win over the
	// environment, which the caller resolves before constructing Config.
	APIKey  string
	BaseURL string
	// SystemPrompt overrides the built-in bridge prompt.
	SystemPrompt string
	// Out receives the marker line. Defaults to os.Stdout.
	Out io.Writer
	// Logger receives advisory progress output. Defaults to slog.Default.
	Logger *slog.Logger
}

const defaultSystemPrompt = "You are an autonomous task runner. Work the task to completion " +
	"without asking questions. When you finish, call the report_status tool exactly once " +
	"with the outcome before your final answer."

// ForcedAgentConfig is the configuration snapshot the bridge always runs
// with, regardless of caller intent: one non-interactive pass, tools
// auto-approved, telemetry off, streaming progress.
func ForcedAgentConfig() agent.Config {
	return agent.Config{
		NonInteractive:    true,
		ApprovalMode:      agent.ApprovalFullAuto,
		TelemetryDisabled: true,
		OutputFormat:      agent.OutputStream,
	}
}

// Bridge owns one execution attempt.
type Bridge struct {
	runner      Runner
	recorder    *tools.StatusRecorder
	telemetry   *observe.Telemetry
	transcripts *artifact.Store
	out         io.Writer
	logger      *slog.Logger
	closers     []io.Closer
}

// transcript is the persisted record of one execution attempt.
type transcript struct {
	Prompt     string               `json:"prompt"`
	Output     string               `json:"output,omitempty"`
	Status     string               `json:"status"`
	Result     string               `json:"result"`
	Error      string               `json:"error,omitempty"`
	Report     *statusreport.Report `json:"report,omitempty"`
	FinishedAt time.Time            `json:"finishedAt"`
}

// New wires a Bridge around a real provider and agent.
func New(ctx context.Context, cfg Config) (*Bridge, error) {
	out, logger := cfg.Out, cfg.Logger
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := factory.FromConfig(ctx, factory.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	forced := ForcedAgentConfig()
	telemetry := observe.NewTelemetry(!forced.TelemetryDisabled, "oneagent-bridge")
	recorder := &tools.StatusRecorder{}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	b := &Bridge{
		recorder:  recorder,
		telemetry: telemetry,
		out:       out,
		logger:    logger,
	}

	sinks := []observe.Sink{observe.NewLogSink(logger), telemetry.Sink()}
	if path := strings.TrimSpace(os.Getenv(EnvAuditDB)); path != "" {
		audit, auditErr := auditsqlite.New(path)
		if auditErr != nil {
			return nil, fmt.Errorf("open audit db: %w", auditErr)
		}
		sinks = append(sinks, audit)
		b.closers = append(b.closers, audit)
	}

	reportTool := tools.NewReportStatus(recorder)
	httpTool := tools.NewHTTPRequest(nil)

	opts := []agent.Option{
		agent.WithModel(cfg.Model),
		agent.WithSystemPrompt(systemPrompt),
		agent.WithConfig(forced),
		agent.WithTools(reportTool, httpTool),
		agent.WithObserver(observe.NewMultiSink(sinks...)),
		agent.WithLogger(logger),
	}

	// Publish the bridge wiring for embedders: tool instances into the
	// global registry, the preset under the well-known flow name.
	if err := tools.Upsert(reportTool); err != nil {
		return nil, err
	}
	if err := tools.Upsert(httpTool); err != nil {
		return nil, err
	}
	if err := flow.Upsert(flow.Definition{
		Name:         FlowName,
		Description:  "One non-interactive run ending in a status report",
		Model:        cfg.Model,
		SystemPrompt: systemPrompt,
		Tools:        []string{tools.ReportStatusName, tools.HTTPRequestName},
	}); err != nil {
		return nil, err
	}

	if dir := strings.TrimSpace(os.Getenv(EnvTranscriptDir)); dir != "" {
		b.transcripts = artifact.New(dir, nil)
	}

	if backend := strings.TrimSpace(os.Getenv(statefactory.EnvBackend)); backend != "" {
		store, storeErr := statefactory.FromEnv()
		if storeErr != nil {
			return nil, fmt.Errorf("configure state backend: %w", storeErr)
		}
		opts = append(opts, agent.WithState(store))
		b.closers = append(b.closers, store)
		if sessionID := strings.TrimSpace(os.Getenv(EnvSessionID)); sessionID != "" {
			opts = append(opts, agent.WithSessionID(sessionID))
		}
	}

	runner, err := agent.New(provider, opts...)
	if err != nil {
		return nil, err
	}
	b.runner = runner
	return b, nil
}

// NewWithRunner wires a Bridge around an existing runner. The recorder
// may be nil when the runner carries no report_status tool.
func NewWithRunner(runner Runner, recorder *tools.StatusRecorder, out io.Writer, logger *slog.Logger) *Bridge {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{runner: runner, recorder: recorder, out: out, logger: logger}
	if dir := strings.TrimSpace(os.Getenv(EnvTranscriptDir)); dir != "" {
		b.transcripts = artifact.New(dir, nil)
	}
	return b
}

// Execute performs exactly one run and prints the marker line. The
// returned value is the process exit code. A blank prompt is a usage
// error: exit 1 with no marker, since the output contract has not begun.
func (b *Bridge) Execute(ctx context.Context, prompt string) int {
	if strings.TrimSpace(prompt) == "" {
		b.logger.Error("prompt is required")
		return ExitFailure
	}

	output, err := b.runner.Run(ctx, prompt)
	if b.telemetry != nil {
		if shutdownErr := b.telemetry.Shutdown(ctx); shutdownErr != nil {
			b.logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}
	for _, closer := range b.closers {
		if closeErr := closer.Close(); closeErr != nil {
			b.logger.Warn("store close failed", "error", closeErr)
		}
	}
	if err != nil {
		result := "Bridge Exception: " + err.Error()
		b.saveTranscript(ctx, transcript{
			Prompt: prompt,
			Output: output,
			Status: MarkerFailure,
			Result: result,
			Error:  err.Error(),
		})
		b.writeMarker(MarkerFailure, result)
		return ExitFailure
	}

	result := output
	var reported *statusreport.Report
	if b.recorder != nil {
		if report, ok := b.recorder.Report(); ok {
			result = report.Result
			reported = &report
			b.logger.Info("task reported", "status", string(report.Status))
		}
	}
	b.saveTranscript(ctx, transcript{
		Prompt: prompt,
		Output: output,
		Status: MarkerSuccess,
		Result: result,
		Report: reported,
	})
	b.writeMarker(MarkerSuccess, result)
	return ExitOK
}

// saveTranscript persists the execution record when a transcript directory
// is configured. Persistence failures never change the exit outcome.
func (b *Bridge) saveTranscript(ctx context.Context, rec transcript) {
	if b.transcripts == nil {
		return
	}
	rec.FinishedAt = time.Now().UTC()
	name := rec.FinishedAt.Format("20060102T150405Z") + ".json"
	if _, err := b.transcripts.SaveJSON(ctx, "", name, rec); err != nil {
		b.logger.Warn("transcript save failed", "error", err)
	}
}

func (b *Bridge) writeMarker(status, result string) {
	WriteMarker(b.out, status, result)
}

// WriteMarker prints the single terminating marker line.
func WriteMarker(w io.Writer, status, result string) {
	payload, err := json.Marshal(markerPayload{Status: status, Result: result})
	if err != nil {
		// markerPayload cannot fail to marshal; guard anyway so the
		// contract line is never silently dropped.
		payload = []byte(`{"status":"failure","result":"marker encoding failed"}`)
	}
	fmt.Fprintln(w, MarkerPrefix+string(payload))
}

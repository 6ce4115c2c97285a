package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/flow"
	"github.com/oneagenthq/oneagent/statusreport"
	"github.com/oneagenthq/oneagent/tools"
)

type fakeRunner struct {
	output string
	err    error
	prompt string
}

func (r *fakeRunner) Run(_ context.Context, prompt string) (string, error) {
	r.prompt = prompt
	return r.output, r.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lastLine returns the final non-empty line of the captured output.
func lastLine(t *testing.T, out *bytes.Buffer) string {
	t.Helper()
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) == 0 {
		t.Fatal("no output written")
	}
	return lines[len(lines)-1]
}

func TestExecute_SuccessMarker(t *testing.T) {
	out := &bytes.Buffer{}
	runner := &fakeRunner{output: "all done"}
	b := NewWithRunner(runner, nil, out, quietLogger())

	code := b.Execute(context.Background(), "do the task")
	if code != ExitOK {
		t.Errorf("expected exit 0, got %d", code)
	}
	want := `__ONEAGENT_RESULT__:{"status":"success","result":"all done"}`
	if got := lastLine(t, out); got != want {
		t.Errorf("marker mismatch:\n got  %s\n want %s", got, want)
	}
	if runner.prompt != "do the task" {
		t.Errorf("prompt not forwarded: %q", runner.prompt)
	}
}

func TestExecute_FailureMarker(t *testing.T) {
	out := &bytes.Buffer{}
	b := NewWithRunner(&fakeRunner{err: errors.New("boom")}, nil, out, quietLogger())

	code := b.Execute(context.Background(), "do the task")
	if code != ExitFailure {
		t.Errorf("expected exit 1, got %d", code)
	}
	want := `__ONEAGENT_RESULT__:{"status":"failure","result":"Bridge Exception: boom"}`
	if got := lastLine(t, out); got != want {
		t.Errorf("marker mismatch:\n got  %s\n want %s", got, want)
	}
}

func TestExecute_BlankPromptIsUsageErrorWithoutMarker(t *testing.T) {
	out := &bytes.Buffer{}
	b := NewWithRunner(&fakeRunner{output: "unreachable"}, nil, out, quietLogger())

	code := b.Execute(context.Background(), "   ")
	if code != ExitFailure {
		t.Errorf("expected exit 1, got %d", code)
	}
	if strings.Contains(out.String(), MarkerPrefix) {
		t.Errorf("usage error must not print a marker, got %q", out.String())
	}
}

func TestExecute_ReportedResultWinsOverRunOutput(t *testing.T) {
	out := &bytes.Buffer{}
	recorder := &tools.StatusRecorder{}
	reportTool := tools.NewReportStatus(recorder)
	if _, err := reportTool.Execute(context.Background(),
		[]byte(`{"status":"success","result":"checks passed"}`)); err != nil {
		t.Fatalf("record report: %v", err)
	}

	b := NewWithRunner(&fakeRunner{output: "final prose answer"}, recorder, out, quietLogger())
	code := b.Execute(context.Background(), "run checks")
	if code != ExitOK {
		t.Errorf("expected exit 0, got %d", code)
	}
	want := `__ONEAGENT_RESULT__:{"status":"success","result":"checks passed"}`
	if got := lastLine(t, out); got != want {
		t.Errorf("marker mismatch:\n got  %s\n want %s", got, want)
	}
}

func TestExecute_ReportedFailureStillExitsZero(t *testing.T) {
	// A completed run that reports a task failure is still a successful
	// execution attempt: the marker reflects the attempt, the payload
	// carries the reported text.
	out := &bytes.Buffer{}
	recorder := &tools.StatusRecorder{}
	reportTool := tools.NewReportStatus(recorder)
	if _, err := reportTool.Execute(context.Background(),
		[]byte(`{"status":"failure","result":"tests red"}`)); err != nil {
		t.Fatalf("record report: %v", err)
	}

	b := NewWithRunner(&fakeRunner{output: "done"}, recorder, out, quietLogger())
	if code := b.Execute(context.Background(), "run"); code != ExitOK {
		t.Errorf("expected exit 0, got %d", code)
	}
	report, ok := recorder.Report()
	if !ok || report.Status != statusreport.StatusFailure {
		t.Fatalf("expected recorded failure report, got %+v", report)
	}
	if got := lastLine(t, out); !strings.Contains(got, `"result":"tests red"`) {
		t.Errorf("marker should carry reported text, got %s", got)
	}
}

func TestForcedAgentConfig(t *testing.T) {
	cfg := ForcedAgentConfig()
	if !cfg.NonInteractive {
		t.Error("bridge runs must be non-interactive")
	}
	if cfg.ApprovalMode != agent.ApprovalFullAuto {
		t.Errorf("expected full-auto approvals, got %q", cfg.ApprovalMode)
	}
	if !cfg.TelemetryDisabled {
		t.Error("bridge runs must disable telemetry")
	}
	if cfg.OutputFormat != agent.OutputStream {
		t.Errorf("expected streaming output, got %q", cfg.OutputFormat)
	}
}

func TestNew_RequiresProviderConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := New(context.Background(), Config{Logger: quietLogger()}); err == nil {
		t.Error("expected provider resolution error with no keys")
	}
}

func TestNew_WiresAgent(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ONEAGENT_STATE_BACKEND", "")
	t.Setenv(EnvAuditDB, "")
	b, err := New(context.Background(), Config{
		Provider: "openai",
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
		Out:      &bytes.Buffer{},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	a, ok := b.runner.(*agent.Agent)
	if !ok {
		t.Fatalf("runner is not an agent: %T", b.runner)
	}
	names := a.ToolNames()
	if len(names) == 0 || names[0] != tools.ReportStatusName {
		t.Errorf("report_status must be registered first, got %v", names)
	}
	if a.Config() != ForcedAgentConfig() {
		t.Errorf("agent config not forced: %+v", a.Config())
	}
}

func TestNew_PublishesBridgePreset(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ONEAGENT_STATE_BACKEND", "")
	t.Setenv(EnvAuditDB, "")
	t.Setenv(EnvTranscriptDir, "")
	t.Cleanup(func() { flow.Delete(FlowName) })

	if _, err := New(context.Background(), Config{
		Provider: "openai",
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
		Out:      &bytes.Buffer{},
		Logger:   quietLogger(),
	}); err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	def, ok := flow.Get(FlowName)
	if !ok {
		t.Fatalf("preset %q not registered", FlowName)
	}
	if def.Model != "gpt-4o-mini" {
		t.Errorf("preset model not carried: %q", def.Model)
	}
	wantTools := []string{tools.ReportStatusName, tools.HTTPRequestName}
	if len(def.Tools) != len(wantTools) || def.Tools[0] != wantTools[0] || def.Tools[1] != wantTools[1] {
		t.Errorf("preset tools mismatch: %v", def.Tools)
	}
	// The preset must resolve against the global tool registry.
	if _, err := def.AgentOptions(); err != nil {
		t.Errorf("preset does not resolve: %v", err)
	}
}

func TestExecute_WritesTranscriptWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvTranscriptDir, dir)

	recorder := &tools.StatusRecorder{}
	reportTool := tools.NewReportStatus(recorder)
	if _, err := reportTool.Execute(context.Background(),
		[]byte(`{"status":"success","result":"checks passed"}`)); err != nil {
		t.Fatalf("record report: %v", err)
	}

	b := NewWithRunner(&fakeRunner{output: "final prose"}, recorder, &bytes.Buffer{}, quietLogger())
	if code := b.Execute(context.Background(), "run checks"); code != ExitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read transcript dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	var rec transcript
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if rec.Prompt != "run checks" || rec.Status != MarkerSuccess || rec.Result != "checks passed" {
		t.Errorf("unexpected transcript: %+v", rec)
	}
	if rec.Report == nil || rec.Report.Status != statusreport.StatusSuccess {
		t.Errorf("transcript should embed the recorded report: %+v", rec.Report)
	}
	if rec.FinishedAt.IsZero() {
		t.Error("transcript missing completion time")
	}
}

func TestExecute_FailureTranscriptCarriesError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvTranscriptDir, dir)

	b := NewWithRunner(&fakeRunner{err: errors.New("boom")}, nil, &bytes.Buffer{}, quietLogger())
	if code := b.Execute(context.Background(), "run"); code != ExitFailure {
		t.Fatalf("expected exit 1, got %d", code)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 transcript, got %d (err %v)", len(entries), err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	var rec transcript
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if rec.Status != MarkerFailure || rec.Error != "boom" {
		t.Errorf("unexpected failure transcript: %+v", rec)
	}
	if rec.Result != "Bridge Exception: boom" {
		t.Errorf("transcript result should match the marker payload: %q", rec.Result)
	}
}

func TestNew_EnvPersistenceWiring(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ONEAGENT_STATE_BACKEND", "sqlite")
	t.Setenv("ONEAGENT_STATE_SQLITE_PATH", filepath.Join(dir, "sessions.db"))
	t.Setenv(EnvAuditDB, filepath.Join(dir, "audit.db"))
	t.Setenv(EnvSessionID, "resume-me")

	b, err := New(context.Background(), Config{
		Provider: "openai",
		APIKey:   "sk-test",
		Out:      &bytes.Buffer{},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	// audit store + session store
	if len(b.closers) != 2 {
		t.Errorf("expected 2 owned stores, got %d", len(b.closers))
	}
	for _, closer := range b.closers {
		if err := closer.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}
}

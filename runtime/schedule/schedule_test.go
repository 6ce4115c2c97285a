package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/artifact"
	"github.com/oneagenthq/oneagent/flow"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerFlow(t *testing.T, name string) {
	t.Helper()
	flow.Reset()
	t.Cleanup(flow.Reset)
	flow.MustRegister(flow.Definition{Name: name, Model: "gpt-4o-mini"})
}

func TestNew_RequiresExecutor(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil executor")
	}
}

func TestAdd_Validation(t *testing.T) {
	registerFlow(t, "nightly")
	s, err := New(func(context.Context, flow.Definition, string) (*agent.RunResult, error) {
		return &agent.RunResult{RunID: "r"}, nil
	}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := s.Add("@hourly", "", "x"); err == nil {
		t.Error("blank flow name must fail")
	}
	if _, err := s.Add("@hourly", "missing", "x"); err == nil {
		t.Error("unregistered flow must fail")
	}
	if _, err := s.Add("not a cron spec", "nightly", "x"); err == nil {
		t.Error("invalid spec must fail")
	}
	if _, err := s.Add("0 3 * * *", "nightly", "x"); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}
	if s.JobCount() != 1 {
		t.Errorf("expected 1 job, got %d", s.JobCount())
	}
}

func TestRunNow_ExecutesAndPersistsRecord(t *testing.T) {
	registerFlow(t, "nightly")
	base := t.TempDir()

	var gotInput string
	exec := func(_ context.Context, def flow.Definition, input string) (*agent.RunResult, error) {
		if def.Name != "nightly" {
			t.Errorf("unexpected flow %q", def.Name)
		}
		gotInput = input
		return &agent.RunResult{RunID: "run-1", Output: "done", Iterations: 1}, nil
	}

	s, err := New(exec,
		WithLogger(quietLogger()),
		WithArtifacts(artifact.New(base, nil)),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunNow(context.Background(), "nightly", "check the backups"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if gotInput != "check the backups" {
		t.Errorf("input not forwarded: %q", gotInput)
	}

	entries, err := os.ReadDir(filepath.Join(base, "runs", "run-1"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("run record not persisted: %v, %v", entries, err)
	}
	if !strings.HasSuffix(entries[0].Name(), ".json") {
		t.Errorf("unexpected record name %q", entries[0].Name())
	}
}

func TestRunNow_ExecutorFailure(t *testing.T) {
	registerFlow(t, "nightly")
	exec := func(context.Context, flow.Definition, string) (*agent.RunResult, error) {
		return nil, errors.New("provider down")
	}
	s, err := New(exec, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = s.RunNow(context.Background(), "nightly", "x")
	if err == nil || !strings.Contains(err.Error(), "provider down") {
		t.Errorf("expected executor error, got %v", err)
	}
	if err := s.RunNow(context.Background(), "gone", "x"); err == nil {
		t.Error("unregistered flow must fail at run time")
	}
}

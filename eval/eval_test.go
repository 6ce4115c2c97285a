package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/llm"
	"github.com/oneagenthq/oneagent/statusreport"
)

func TestRunAssertions(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		assertion Assertion
		wantPass  bool
	}{
		{name: "contains case-insensitive", output: "All Checks Passed", assertion: Assertion{Type: "contains", Value: "checks passed"}, wantPass: true},
		{name: "contains case-sensitive miss", output: "All Checks Passed", assertion: Assertion{Type: "contains", Value: "checks passed", CaseSensitive: true}, wantPass: false},
		{name: "regex match", output: "exit code 0", assertion: Assertion{Type: "regex", Pattern: `exit code \d+`}, wantPass: true},
		{name: "regex invalid", output: "x", assertion: Assertion{Type: "regex", Pattern: "("}, wantPass: false},
		{name: "equals", output: "done", assertion: Assertion{Type: "equals", Value: "done"}, wantPass: true},
		{name: "json valid", output: `{"a":1}`, assertion: Assertion{Type: "json_valid"}, wantPass: true},
		{name: "json invalid", output: `{oops`, assertion: Assertion{Type: "json_valid"}, wantPass: false},
		{name: "unknown type", output: "x", assertion: Assertion{Type: "nope"}, wantPass: false},
		{
			name:   "json schema",
			output: `{"status":"success","result":"ok"}`,
			assertion: Assertion{Type: "json_schema", Schema: map[string]any{
				"type":     "object",
				"required": []any{"status", "result"},
				"properties": map[string]any{
					"status": map[string]any{"type": "string", "enum": []any{"success", "failure"}},
				},
			}},
			wantPass: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := runAssertions(tt.output, []Assertion{tt.assertion})
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Pass != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", results[0].Pass, tt.wantPass, results[0].Detail)
			}
		})
	}
}

func successRun(output string, toolNames ...string) RunFunc {
	return func(context.Context, string) (*agent.RunResult, *statusreport.Report, error) {
		result := &agent.RunResult{
			Output: output,
			Usage:  llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		}
		for _, name := range toolNames {
			result.ToolEvents = append(result.ToolEvents, agent.ToolEvent{Tool: name})
		}
		report, _ := statusreport.New("success", output, "", "")
		return result, &report, nil
	}
}

func TestRunner_PassingCase(t *testing.T) {
	r, err := NewRunner(successRun("all green", "report_status"),
		WithDatasetName("smoke"), WithProviderName("scripted"))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	report := r.Run(context.Background(), []Case{{
		ID:             "c1",
		Input:          "run checks",
		ExpectedStatus: "success",
		RequiredTools:  []string{"report_status"},
		Assertions:     []Assertion{{Type: "contains", Value: "green"}},
		Tags:           []string{"smoke"},
	}})

	if report.Passed != 1 || report.Total != 1 {
		t.Errorf("expected 1/1 passed, got %d/%d", report.Passed, report.Total)
	}
	if report.PassRate != 100 {
		t.Errorf("pass rate %v", report.PassRate)
	}
	if report.ToolConstraintPassed != 1 || report.ToolConstraintCases != 1 {
		t.Errorf("tool constraints %d/%d", report.ToolConstraintPassed, report.ToolConstraintCases)
	}
	if report.TotalTokens != 15 {
		t.Errorf("token total %d", report.TotalTokens)
	}
	if m, ok := report.PerTag["smoke"]; !ok || m.Passed != 1 {
		t.Errorf("per-tag metrics missing: %+v", report.PerTag)
	}
}

func TestRunner_StatusMismatch(t *testing.T) {
	r, _ := NewRunner(successRun("done"))
	report := r.Run(context.Background(), []Case{{
		ID:             "c1",
		Input:          "x",
		ExpectedStatus: "failure",
	}})
	if report.Passed != 0 {
		t.Errorf("status mismatch must fail the case")
	}
	detail := report.Results[0].Checks[0].Detail
	if !strings.Contains(detail, `reported "success"`) {
		t.Errorf("detail should name the reported status: %q", detail)
	}
}

func TestRunner_MissingStatusReport(t *testing.T) {
	run := func(context.Context, string) (*agent.RunResult, *statusreport.Report, error) {
		return &agent.RunResult{Output: "done"}, nil, nil
	}
	r, _ := NewRunner(run)
	report := r.Run(context.Background(), []Case{{ID: "c1", Input: "x", ExpectedStatus: "success"}})
	if report.Passed != 0 {
		t.Error("expected failure when no status was reported")
	}
}

func TestRunner_ForbiddenTool(t *testing.T) {
	r, _ := NewRunner(successRun("done", "http_request"))
	report := r.Run(context.Background(), []Case{{
		ID:             "c1",
		Input:          "x",
		ForbiddenTools: []string{"http_request"},
	}})
	if report.Passed != 0 || report.ToolConstraintPassed != 0 {
		t.Errorf("forbidden tool use must fail: %+v", report.Results[0])
	}
}

func TestRunner_RunError(t *testing.T) {
	run := func(context.Context, string) (*agent.RunResult, *statusreport.Report, error) {
		return nil, nil, errors.New("provider down")
	}
	r, _ := NewRunner(run)
	report := r.Run(context.Background(), []Case{{ID: "c1", Input: "x"}})
	if report.Passed != 0 || report.Results[0].Error != "provider down" {
		t.Errorf("run error not recorded: %+v", report.Results[0])
	}
}

type fixedJudge struct {
	score  float64
	reason string
	err    error
}

func (j fixedJudge) Score(context.Context, JudgeInput) (JudgeResult, error) {
	return JudgeResult{Score: j.score, Reason: j.reason}, j.err
}

func TestRunner_Judge(t *testing.T) {
	r, _ := NewRunner(successRun("done"), WithJudge(fixedJudge{score: 0.4}))
	report := r.Run(context.Background(), []Case{{
		ID:            "c1",
		Input:         "x",
		JudgeRubric:   "be thorough",
		MinJudgeScore: 0.8,
	}})
	if report.Passed != 0 {
		t.Error("score below minimum must fail")
	}
	if report.Results[0].JudgeScore != 0.4 {
		t.Errorf("judge score not recorded: %+v", report.Results[0])
	}
}

func TestParseJudgeResult(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
		wantErr bool
	}{
		{name: "bare json", content: `{"score":0.9,"reason":"good"}`, want: 0.9},
		{name: "fenced json", content: "```json\n{\"score\":0.5,\"reason\":\"meh\"}\n```", want: 0.5},
		{name: "embedded json", content: `The verdict: {"score":1,"reason":"exact"} as requested.`, want: 1},
		{name: "empty", content: "  ", wantErr: true},
		{name: "no json", content: "great job", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJudgeResult(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Score != tt.want {
				t.Errorf("score %v, want %v", got.Score, tt.want)
			}
		})
	}
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	content := `# smoke cases
{"input":"run checks","expectedStatus":"success"}

{"id":"named","input":"other","tags":["a"]}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	cases, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != "case-1" || cases[1].ID != "named" {
		t.Errorf("ids: %q, %q", cases[0].ID, cases[1].ID)
	}

	bad := filepath.Join(t.TempDir(), "bad.jsonl")
	os.WriteFile(bad, []byte(`{"input":""}`+"\n"), 0o644)
	if _, err := LoadJSONL(bad); err == nil {
		t.Error("blank input must fail")
	}
}

func TestFormatMarkdown(t *testing.T) {
	report := Report{
		Dataset:  "smoke",
		Provider: "scripted",
		Total:    2,
		Passed:   1,
		PassRate: 50,
		Results: []CaseResult{
			{CaseID: "ok", Pass: true},
			{CaseID: "bad", Pass: false, Checks: []CheckResult{{Name: "contains", Pass: false, Detail: "missing"}}},
		},
	}
	md := FormatMarkdown(report)
	for _, want := range []string{"# Eval Report", "`smoke`", "50.00%", "## Failures", "`bad`: contains (missing)"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

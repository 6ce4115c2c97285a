package eval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oneagenthq/oneagent/agent"
	"github.com/oneagenthq/oneagent/llm"
	"github.com/oneagenthq/oneagent/statusreport"
)

// RunFunc executes one case input and returns the run record plus the
// status report the run recorded, if any.
type RunFunc func(ctx context.Context, input string) (*agent.RunResult, *statusreport.Report, error)

// CaseResult is one scored case.
type CaseResult struct {
	CaseID      string        `json:"caseId"`
	Pass        bool          `json:"pass"`
	Checks      []CheckResult `json:"checks,omitempty"`
	Error       string        `json:"error,omitempty"`
	LatencyMs   int64         `json:"latencyMs"`
	Usage       llm.Usage     `json:"usage"`
	UsedTools   []string      `json:"usedTools,omitempty"`
	JudgeScore  float64       `json:"judgeScore,omitempty"`
	JudgeReason string        `json:"judgeReason,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// TagMetrics aggregates pass rates per dataset tag.
type TagMetrics struct {
	PassRate float64 `json:"passRate"`
	Passed   int     `json:"passed"`
	Total    int     `json:"total"`
}

// Report aggregates a full dataset run.
type Report struct {
	Dataset                string                `json:"dataset,omitempty"`
	Provider               string                `json:"provider,omitempty"`
	Total                  int                   `json:"total"`
	Passed                 int                   `json:"passed"`
	PassRate               float64               `json:"passRate"`
	AvgLatencyMs           float64               `json:"avgLatencyMs"`
	LatencyP50Ms           int64                 `json:"latencyP50Ms"`
	LatencyP95Ms           int64                 `json:"latencyP95Ms"`
	TotalInputTokens       int                   `json:"totalInputTokens"`
	TotalOutputTokens      int                   `json:"totalOutputTokens"`
	TotalTokens            int                   `json:"totalTokens"`
	ToolConstraintCases    int                   `json:"toolConstraintCases"`
	ToolConstraintPassed   int                   `json:"toolConstraintPassed"`
	ToolConstraintAccuracy float64               `json:"toolConstraintAccuracy"`
	PerTag                 map[string]TagMetrics `json:"perTag,omitempty"`
	Results                []CaseResult          `json:"results"`
}

// Runner executes a dataset.
type Runner struct {
	run      RunFunc
	judge    Judge
	dataset  string
	provider string
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithJudge enables LLM scoring for cases that carry a rubric.
func WithJudge(judge Judge) RunnerOption {
	return func(r *Runner) { r.judge = judge }
}

// WithDatasetName labels the report.
func WithDatasetName(name string) RunnerOption {
	return func(r *Runner) { r.dataset = name }
}

// WithProviderName labels the report.
func WithProviderName(name string) RunnerOption {
	return func(r *Runner) { r.provider = name }
}

// NewRunner builds a Runner over a run function.
func NewRunner(run RunFunc, opts ...RunnerOption) (*Runner, error) {
	if run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	r := &Runner{run: run}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes every case sequentially and aggregates the report.
func (r *Runner) Run(ctx context.Context, cases []Case) Report {
	report := Report{
		Dataset:  r.dataset,
		Provider: r.provider,
		Total:    len(cases),
		Results:  make([]CaseResult, 0, len(cases)),
	}

	latencies := make([]int64, 0, len(cases))
	tagPassed := map[string]int{}
	tagTotal := map[string]int{}

	for _, c := range cases {
		result := r.runCase(ctx, c)
		report.Results = append(report.Results, result)

		latencies = append(latencies, result.LatencyMs)
		report.TotalInputTokens += result.Usage.InputTokens
		report.TotalOutputTokens += result.Usage.OutputTokens
		report.TotalTokens += result.Usage.TotalTokens

		if result.Pass {
			report.Passed++
		}
		if len(c.RequiredTools) > 0 || len(c.ForbiddenTools) > 0 {
			report.ToolConstraintCases++
			if toolConstraintsPass(result.Checks) {
				report.ToolConstraintPassed++
			}
		}
		for _, tag := range c.Tags {
			tagTotal[tag]++
			if result.Pass {
				tagPassed[tag]++
			}
		}
	}

	if report.Total > 0 {
		report.PassRate = 100 * float64(report.Passed) / float64(report.Total)
	}
	if report.ToolConstraintCases > 0 {
		report.ToolConstraintAccuracy = 100 * float64(report.ToolConstraintPassed) / float64(report.ToolConstraintCases)
	}
	if len(latencies) > 0 {
		var sum int64
		for _, l := range latencies {
			sum += l
		}
		report.AvgLatencyMs = float64(sum) / float64(len(latencies))
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		report.LatencyP50Ms = percentile(latencies, 50)
		report.LatencyP95Ms = percentile(latencies, 95)
	}
	if len(tagTotal) > 0 {
		report.PerTag = make(map[string]TagMetrics, len(tagTotal))
		for tag, total := range tagTotal {
			passed := tagPassed[tag]
			report.PerTag[tag] = TagMetrics{
				PassRate: 100 * float64(passed) / float64(total),
				Passed:   passed,
				Total:    total,
			}
		}
	}
	return report
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	result := CaseResult{CaseID: c.ID, Tags: c.Tags}

	started := time.Now()
	runResult, reported, err := r.run(ctx, c.Input)
	result.LatencyMs = time.Since(started).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	output := runResult.Output
	result.Usage = runResult.Usage
	result.UsedTools = usedTools(runResult)

	checks := runAssertions(output, c.Assertions)
	checks = append(checks, checkExpectedStatus(c.ExpectedStatus, reported)...)
	checks = append(checks, checkToolConstraints(c, result.UsedTools)...)

	if c.JudgeRubric != "" && r.judge != nil {
		judged, judgeErr := r.judge.Score(ctx, JudgeInput{
			CaseID:         c.ID,
			Input:          c.Input,
			Expected:       c.ExpectedOutput,
			Output:         output,
			Rubric:         c.JudgeRubric,
			Assertions:     c.Assertions,
			RequiredTools:  c.RequiredTools,
			ForbiddenTools: c.ForbiddenTools,
			UsedTools:      result.UsedTools,
		})
		if judgeErr != nil {
			checks = append(checks, CheckResult{Name: "judge", Pass: false, Detail: judgeErr.Error()})
		} else {
			result.JudgeScore = judged.Score
			result.JudgeReason = judged.Reason
			pass := judged.Score >= c.MinJudgeScore
			detail := ""
			if !pass {
				detail = fmt.Sprintf("score %.2f below minimum %.2f", judged.Score, c.MinJudgeScore)
			}
			checks = append(checks, CheckResult{Name: "judge", Pass: pass, Detail: detail})
		}
	}

	result.Checks = checks
	result.Pass = true
	for _, check := range checks {
		if !check.Pass {
			result.Pass = false
			break
		}
	}
	return result
}

func checkExpectedStatus(expected string, reported *statusreport.Report) []CheckResult {
	if expected == "" {
		return nil
	}
	if reported == nil {
		return []CheckResult{{Name: "expected_status", Pass: false, Detail: "no status was reported"}}
	}
	want := strings.ToLower(strings.TrimSpace(expected))
	if string(reported.Status) != want {
		return []CheckResult{{
			Name:   "expected_status",
			Pass:   false,
			Detail: fmt.Sprintf("reported %q, expected %q", reported.Status, want),
		}}
	}
	return []CheckResult{{Name: "expected_status", Pass: true}}
}

func checkToolConstraints(c Case, used []string) []CheckResult {
	if len(c.RequiredTools) == 0 && len(c.ForbiddenTools) == 0 {
		return nil
	}
	usedSet := make(map[string]bool, len(used))
	for _, name := range used {
		usedSet[name] = true
	}
	var out []CheckResult
	for _, name := range c.RequiredTools {
		if usedSet[name] {
			out = append(out, CheckResult{Name: "required_tool:" + name, Pass: true})
		} else {
			out = append(out, CheckResult{Name: "required_tool:" + name, Pass: false, Detail: "tool was not called"})
		}
	}
	for _, name := range c.ForbiddenTools {
		if usedSet[name] {
			out = append(out, CheckResult{Name: "forbidden_tool:" + name, Pass: false, Detail: "tool was called"})
		} else {
			out = append(out, CheckResult{Name: "forbidden_tool:" + name, Pass: true})
		}
	}
	return out
}

func toolConstraintsPass(checks []CheckResult) bool {
	for _, check := range checks {
		if !check.Pass && (strings.HasPrefix(check.Name, "required_tool:") || strings.HasPrefix(check.Name, "forbidden_tool:")) {
			return false
		}
	}
	return true
}

func usedTools(result *agent.RunResult) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, event := range result.ToolEvents {
		if !seen[event.Tool] {
			seen[event.Tool] = true
			out = append(out, event.Tool)
		}
	}
	return out
}

// percentile expects sorted input.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p*len(sorted) + 99) / 100
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	return sorted[idx-1]
}

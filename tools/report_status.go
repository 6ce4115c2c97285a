package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oneagenthq/oneagent/statusreport"
)

// ReportStatusName is the registered name of the status-reporting tool.
const ReportStatusName = "report_status"

type reportStatusArgs struct {
	Status         string `json:"status"`
	Result         string `json:"result"`
	Reason         string `json:"reason,omitempty"`
	MismatchDetail string `json:"mismatch_detail,omitempty"`
}

// StatusRecorder receives the normalized report once the tool fires. The
// bridge uses it to read back the agent's final word after the run returns.
type StatusRecorder struct {
	mu     sync.Mutex
	report *statusreport.Report
}

func (r *StatusRecorder) record(report statusreport.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := report
	r.report = &copied
}

// Report returns the recorded report, or false when the tool never fired.
func (r *StatusRecorder) Report() (statusreport.Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.report == nil {
		return statusreport.Report{}, false
	}
	return *r.report, true
}

// reportStatusOutcome is the tool result: the normalized record is the
// machine-readable payload, Display the human rendering.
type reportStatusOutcome struct {
	statusreport.Report
}

func (o reportStatusOutcome) Display() string { return o.Report.Display() }

// NewReportStatus builds the declarative status-reporting tool. Validation
// runs before the reporting action; the action itself only records the
// normalized report and returns it, with no other side effects.
func NewReportStatus(recorder *StatusRecorder) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{
				"type":        "string",
				"enum":        statusreport.StatusNames(),
				"description": "How the task concluded. Case-insensitive; stored lowercase.",
			},
			"result": map[string]any{
				"type":        "string",
				"description": "Free-text description of the outcome.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Optional explanation for non-success outcomes.",
			},
			"mismatch_detail": map[string]any{
				"type":        "string",
				"description": "Optional detail when the outcome diverged from what was asked.",
			},
		},
		"required": []string{"status", "result"},
	}

	return NewFuncTool(
		ReportStatusName,
		"Report the final completion status of the current task back to the caller. Call exactly once when the task is finished.",
		schema,
		func(ctx context.Context, args json.RawMessage) (any, error) {
			_ = ctx
			var in reportStatusArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid report_status args: %w", err)
			}
			report, err := statusreport.New(in.Status, in.Result, in.Reason, in.MismatchDetail)
			if err != nil {
				return nil, err
			}
			if recorder != nil {
				recorder.record(report)
			}
			return reportStatusOutcome{Report: report}, nil
		},
	)
}

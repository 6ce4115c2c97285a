// Package statusreport defines the completion record an agent run hands back
// to its caller: a finite status plus a free-text payload, validated and
// normalized before anything is allowed to act on it.
package statusreport

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Status is the canonical, lowercase outcome of a task run.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailure     Status = "failure"
	StatusRejected    Status = "rejected"
	StatusInterrupted Status = "interrupted"
)

var validStatuses = map[Status]bool{
	StatusSuccess:     true,
	StatusFailure:     true,
	StatusRejected:    true,
	StatusInterrupted: true,
}

// Report is an immutable completion record. Construct it with New; a Report
// built any other way has not been validated.
type Report struct {
	Status         Status `json:"status"`
	Result         string `json:"result"`
	Reason         string `json:"reason,omitempty"`
	MismatchDetail string `json:"mismatch_detail,omitempty"`
}

// New validates raw status and payload text and returns a normalized Report.
// The status is case-folded to lowercase; payload text is preserved verbatim.
func New(status, result, reason, mismatchDetail string) (Report, error) {
	if status == "" {
		return Report{}, fmt.Errorf("status is required")
	}
	if result == "" {
		return Report{}, fmt.Errorf("result is required")
	}
	normalized := Status(strings.ToLower(status))
	if !validStatuses[normalized] {
		return Report{}, fmt.Errorf("invalid status %q, use one of: %s", status, strings.Join(StatusNames(), ", "))
	}
	return Report{
		Status:         normalized,
		Result:         result,
		Reason:         reason,
		MismatchDetail: mismatchDetail,
	}, nil
}

// StatusNames returns the recognized status values sorted alphabetically.
func StatusNames() []string {
	names := make([]string, 0, len(validStatuses))
	for s := range validStatuses {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Display renders the report for humans: one line per populated field,
// optional fields omitted when absent.
func (r Report) Display() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Result: %s\n", r.Result)
	if r.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", r.Reason)
	}
	if r.MismatchDetail != "" {
		fmt.Fprintf(&b, "Mismatch Detail: %s\n", r.MismatchDetail)
	}
	return b.String()
}

// JSON returns the machine-readable serialization of the report.
func (r Report) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// Succeeded reports whether the run concluded with a success status.
func (r Report) Succeeded() bool {
	return r.Status == StatusSuccess
}

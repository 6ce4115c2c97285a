package agent

// ApprovalMode controls whether tool calls need a human sign-off.
type ApprovalMode string

const (
	// ApprovalManual requires sign-off before any tool executes. In a
	// non-interactive run this denies every tool call.
	ApprovalManual ApprovalMode = "manual"
	// ApprovalFullAuto executes every tool call without asking.
	ApprovalFullAuto ApprovalMode = "full-auto"
)

// OutputFormat selects how run progress is surfaced while a run executes.
type OutputFormat string

const (
	// OutputText produces only the final output.
	OutputText OutputFormat = "text"
	// OutputStream additionally emits progress events as they happen.
	OutputStream OutputFormat = "stream"
)

// Config is the per-run configuration snapshot. The bridge constructs one of
// these with forced values; nothing mutates it after New.
type Config struct {
	NonInteractive    bool
	ApprovalMode      ApprovalMode
	TelemetryDisabled bool
	OutputFormat      OutputFormat
}

// DefaultConfig is what interactive embedders start from.
func DefaultConfig() Config {
	return Config{
		NonInteractive:    false,
		ApprovalMode:      ApprovalManual,
		TelemetryDisabled: false,
		OutputFormat:      OutputText,
	}
}

func normalizeConfig(in Config) Config {
	out := in
	if out.ApprovalMode == "" {
		out.ApprovalMode = ApprovalManual
	}
	if out.OutputFormat == "" {
		out.OutputFormat = OutputText
	}
	return out
}

// Command oneagent-bridge runs a single non-interactive agent task and
// prints a machine-parseable result marker as the final stdout line.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oneagenthq/oneagent/bridge"
)

// errRunFailed signals a failure that was already reported through the
// marker line; main must exit 1 without printing anything further.
var errRunFailed = errors.New("run failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(bridge.ExitFailure)
	}
}

func newRootCmd() *cobra.Command {
	var (
		provider string
		model    string
		apiKey   string
		baseURL  string
	)

	cmd := &cobra.Command{
		Use:   `oneagent-bridge "<prompt>" [flags]`,
		Short: "Run one non-interactive agent task and print a result marker",
		Long: `oneagent-bridge executes a single instruction through the agent engine
with forced settings (non-interactive, full-auto tool approvals, telemetry
off, streaming progress) and prints exactly one terminating line of the form

  ` + bridge.MarkerPrefix + `{"status":"success|failure","result":"<text>"}

as the last line of standard output. Exit code 0 on success, 1 on failure.
Progress and logs go to standard error.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Past argument validation the output contract is in
			// effect: failures report via the marker, not usage text.
			cmd.SilenceUsage = true

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			prompt := strings.Join(args, " ")
			ctx := cmd.Context()

			b, err := bridge.New(ctx, bridge.Config{
				Provider: provider,
				Model:    model,
				APIKey:   apiKey,
				BaseURL:  baseURL,
				Out:      os.Stdout,
				Logger:   logger,
			})
			if err != nil {
				bridge.WriteMarker(os.Stdout, bridge.MarkerFailure, "Bridge Exception: "+err.Error())
				return errRunFailed
			}
			if code := b.Execute(ctx, prompt); code != bridge.ExitOK {
				return errRunFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&provider, "provider", "", "completion provider (openai or gemini, default: auto-detect)")
	flags.StringVar(&model, "model", "", "model identifier (default: provider default)")
	flags.StringVar(&apiKey, "openai-api-key", "", "API key (default: $OPENAI_API_KEY)")
	flags.StringVar(&baseURL, "openai-base-url", "", "API base URL (default: $OPENAI_BASE_URL)")
	return cmd
}

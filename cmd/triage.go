package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/attribution"
	"github.com/stacksentry/stacksentry/internal/audit"
	"github.com/stacksentry/stacksentry/internal/gitsource"
	"github.com/stacksentry/stacksentry/internal/llmclient"
	"github.com/stacksentry/stacksentry/internal/notify"
	"github.com/stacksentry/stacksentry/internal/observability"
	"github.com/stacksentry/stacksentry/internal/pipeline"
)

// consoleNotifier prints the composed report to the given writer.
type consoleNotifier struct {
	out io.Writer
}

func (n *consoleNotifier) Notify(_ context.Context, text string) error {
	_, err := fmt.Fprintln(n.out, text)
	return err
}

// newTriageCmd creates the one-shot `triage` command. It reads a stack
// trace from a file argument (or stdin when the argument is "-"), runs
// it through the full pipeline, and prints the report.
func newTriageCmd() *cobra.Command {
	var appName string
	var sendSlack bool

	triageCmd := &cobra.Command{
		Use:   "triage [tracefile]",
		Short: "Processes a single stack trace and prints the enriched report",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			trace, err := readTrace(args)
			if err != nil {
				return err
			}

			llm, err := llmclient.NewClient(cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to build completion client: %w", err)
			}
			defer func() {
				if err := llm.Close(); err != nil {
					logger.Warn("Failed to close completion client", zap.Error(err))
				}
			}()

			source, err := gitsource.New(cfg.GitHub, logger)
			if err != nil {
				return fmt.Errorf("failed to build commit source: %w", err)
			}

			var notifier schemas.Notifier = &consoleNotifier{out: cmd.OutOrStdout()}
			if sendSlack {
				if cfg.Slack.WebhookURL == "" {
					return fmt.Errorf("--slack requires slack.webhook_url to be configured")
				}
				slack, err := notify.NewSlack(cfg.Slack, logger)
				if err != nil {
					return err
				}
				notifier = fanoutNotifier{notifier, slack}
			}

			p, err := pipeline.New(pipeline.Deps{
				LLM:      llm,
				Resolver: attribution.NewResolver(source, cfg.Pipeline, logger),
				Recorder: audit.NewRecorder(cfg.Audit.Path, logger),
				Notifier: notifier,
				Logger:   logger,
			}, cfg.Pipeline, cfg.LLM.SystemPrompt)
			if err != nil {
				return err
			}

			result, err := p.ProcessIncident(cmd.Context(), trace, appName)
			if err != nil {
				return err
			}

			logger.Info("Triage complete", zap.Bool("success", result.Success))
			return nil
		},
	}

	triageCmd.Flags().StringVar(&appName, "app", "", "application name for the report header")
	triageCmd.Flags().BoolVar(&sendSlack, "slack", false, "also deliver the report to the configured Slack webhook")
	return triageCmd
}

// fanoutNotifier delivers to every member; the first failure wins.
type fanoutNotifier []schemas.Notifier

func (f fanoutNotifier) Notify(ctx context.Context, text string) error {
	var firstErr error
	for _, n := range f {
		if err := n.Notify(ctx, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func readTrace(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stack trace from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read trace file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("trace file %s is empty", args[0])
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(newTriageCmd())
}

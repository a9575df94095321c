package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/attribution"
	"github.com/stacksentry/stacksentry/internal/audit"
	"github.com/stacksentry/stacksentry/internal/config"
	"github.com/stacksentry/stacksentry/internal/gitsource"
	"github.com/stacksentry/stacksentry/internal/llmclient"
	"github.com/stacksentry/stacksentry/internal/notify"
	"github.com/stacksentry/stacksentry/internal/observability"
	"github.com/stacksentry/stacksentry/internal/pipeline"
	"github.com/stacksentry/stacksentry/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the incident ingestion HTTP server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p, source, closeLLM, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer closeLLM()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(p, source, cfg.Server, logger)
			return srv.Run(ctx)
		},
	}

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return serveCmd
}

// buildPipeline constructs the pipeline and its collaborators from the
// resolved configuration. The returned func closes the completion client.
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, schemas.CommitSource, func(), error) {
	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build completion client: %w", err)
	}
	closeLLM := func() {
		if err := llm.Close(); err != nil {
			logger.Warn("Failed to close completion client", zap.Error(err))
		}
	}

	source, err := gitsource.New(cfg.GitHub, logger)
	if err != nil {
		closeLLM()
		return nil, nil, nil, fmt.Errorf("failed to build commit source: %w", err)
	}

	var notifier schemas.Notifier
	if cfg.Slack.WebhookURL != "" {
		slack, err := notify.NewSlack(cfg.Slack, logger)
		if err != nil {
			closeLLM()
			return nil, nil, nil, fmt.Errorf("failed to build notifier: %w", err)
		}
		notifier = slack
	} else {
		logger.Warn("No Slack webhook configured; reports will not be delivered")
	}

	p, err := pipeline.New(pipeline.Deps{
		LLM:      llm,
		Resolver: attribution.NewResolver(source, cfg.Pipeline, logger),
		Recorder: audit.NewRecorder(cfg.Audit.Path, logger),
		Notifier: notifier,
		Logger:   logger,
	}, cfg.Pipeline, cfg.LLM.SystemPrompt)
	if err != nil {
		closeLLM()
		return nil, nil, nil, err
	}

	return p, source, closeLLM, nil
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

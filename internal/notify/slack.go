// Package notify delivers incident reports to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/internal/config"
)

// SlackNotifier implements schemas.Notifier against a Slack incoming
// webhook URL.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

type slackPayload struct {
	Text string `json:"text"`
}

// NewSlack builds a SlackNotifier. The webhook URL is required.
func NewSlack(cfg config.SlackConfig, logger *zap.Logger) (*SlackNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is required")
	}

	return &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("notify.slack"),
	}, nil
}

// Notify posts the report text to the webhook. Callers treat delivery as
// fire-and-forget; an error here is informational.
func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Debug("Slack notification delivered", zap.Int("bytes", len(text)))
	return nil
}

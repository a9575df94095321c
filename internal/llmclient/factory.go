package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/config"
)

// NewClient is a factory function that creates an LLMClient for the
// configured provider.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	case config.ProviderGoogle:
		return NewGoogleClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: %q. Supported: [%s, %s]",
			cfg.Provider, config.ProviderAnthropic, config.ProviderGoogle)
	}
}

package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Pipeline.HistoryDepth)
	assert.Equal(t, 100, cfg.Pipeline.OwnerWindow)
	assert.Equal(t, 3, cfg.Pipeline.TopAuthors)
	assert.Equal(t, 4, cfg.Pipeline.FanOutLimit)
	assert.Contains(t, cfg.Audit.Path, "incidents.csv")
}

func TestSetDefaults_UnmarshalRoundTrip(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 3, cfg.Pipeline.HistoryDepth)
}

func TestFinalize_ExpandsAuditPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Audit.Path = "~/.stacksentry/incidents.csv"

	require.NoError(t, cfg.Finalize())
	assert.False(t, strings.HasPrefix(cfg.Audit.Path, "~"), "tilde must be expanded")
	assert.True(t, filepath.IsAbs(cfg.Audit.Path))
}

func TestFinalize_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero history depth",
			mutate:  func(c *Config) { c.Pipeline.HistoryDepth = 0 },
			wantErr: "pipeline.history_depth",
		},
		{
			name:    "zero fan out",
			mutate:  func(c *Config) { c.Pipeline.FanOutLimit = 0 },
			wantErr: "pipeline.fan_out_limit",
		},
		{
			name:    "owner window too large",
			mutate:  func(c *Config) { c.Pipeline.OwnerWindow = 500 },
			wantErr: "pipeline.owner_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Finalize()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_SIGNING_SECRET", "shhh")
	t.Setenv("HUBSPOT_API_KEY", "pat-na1-test")
	t.Setenv("HUBSPOT_PORTAL_ID", "21656838")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpotBaseURL)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.Equal(t, 10*time.Second, cfg.CRMTimeout)
	assert.Equal(t, 60*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 170*time.Second, cfg.JobDeadline)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("WORKER_POOL_SIZE", "2")
	t.Setenv("HUBSPOT_BASE_URL", "http://localhost:9999")
	t.Setenv("JOB_DEADLINE", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2, cfg.WorkerPoolSize)
	assert.Equal(t, "http://localhost:9999", cfg.HubSpotBaseURL)
	assert.Equal(t, 2*time.Minute, cfg.JobDeadline)
}

func TestLoadMissingSecrets(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing slack secret", "SLACK_SIGNING_SECRET"},
		{"missing hubspot key", "HUBSPOT_API_KEY"},
		{"missing portal id", "HUBSPOT_PORTAL_ID"},
		{"missing anthropic key", "ANTHROPIC_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestValidateRejectsBadTunables(t *testing.T) {
	base := func() *Config {
		return &Config{
			SlackSigningSecret: "s",
			HubSpotAPIKey:      "k",
			HubSpotPortalID:    "1",
			AnthropicAPIKey:    "a",
			Port:               5000,
			WorkerPoolSize:     4,
			CRMTimeout:         10 * time.Second,
			GenerateTimeout:    60 * time.Second,
			JobDeadline:        170 * time.Second,
		}
	}

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero workers", func(t *testing.T) {
		cfg := base()
		cfg.WorkerPoolSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("deadline under stage timeout", func(t *testing.T) {
		cfg := base()
		cfg.JobDeadline = 30 * time.Second
		assert.Error(t, cfg.Validate())
	})
}

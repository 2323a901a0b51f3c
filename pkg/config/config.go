// Package config provides configuration loading and validation for the
// proposal service. All credentials and tunables come from the environment,
// parsed once at process start; no other component reads ambient state.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the full configuration surface of the service.
type Config struct {
	// Platform signing secret for inbound Slack requests.
	SlackSigningSecret string `env:"SLACK_SIGNING_SECRET"`

	// HubSpot CRM credentials and workspace.
	HubSpotAPIKey   string `env:"HUBSPOT_API_KEY"`
	HubSpotPortalID string `env:"HUBSPOT_PORTAL_ID"`
	HubSpotBaseURL  string `env:"HUBSPOT_BASE_URL" envDefault:"https://api.hubapi.com"`

	// Generative service credentials.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`

	// HTTP server.
	Port int `env:"PORT" envDefault:"5000"`

	// Background pipeline tuning.
	WorkerPoolSize  int           `env:"WORKER_POOL_SIZE" envDefault:"8"`
	CRMTimeout      time.Duration `env:"CRM_TIMEOUT" envDefault:"10s"`
	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"60s"`
	JobDeadline     time.Duration `env:"JOB_DEADLINE" envDefault:"170s"`
}

// Load parses configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required credentials are present and tunables are sane.
func (c *Config) Validate() error {
	if c.SlackSigningSecret == "" {
		return fmt.Errorf("SLACK_SIGNING_SECRET must be set")
	}
	if c.HubSpotAPIKey == "" {
		return fmt.Errorf("HUBSPOT_API_KEY must be set")
	}
	if c.HubSpotPortalID == "" {
		return fmt.Errorf("HUBSPOT_PORTAL_ID must be set")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.JobDeadline < c.CRMTimeout || c.JobDeadline < c.GenerateTimeout {
		return fmt.Errorf("job deadline %s shorter than a single stage timeout", c.JobDeadline)
	}
	return nil
}

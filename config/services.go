package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeSweeper runs the expiry sweeper.
	ServiceModeSweeper ServiceMode = "sweeper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeSweeper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeSweeper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, sweeper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return services, nil
}

// WebhookConfig contains webhook signature verification configuration.
type WebhookConfig struct {
	// Secret is the shared signing secret, base64 encoded, with an optional
	// whsec_ prefix.
	Secret string `env:"SECRET"`

	// Tolerance bounds how far a signed timestamp may drift from local time.
	Tolerance time.Duration `env:"TOLERANCE" envDefault:"5m"`

	// ReplayTTL is how long webhook event ids are remembered for dedupe.
	ReplayTTL time.Duration `env:"REPLAY_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to webhook configuration values.
func (w *WebhookConfig) Sanitize() {
	if w.Tolerance <= 0 {
		w.Tolerance = 5 * time.Minute
	}
	if w.ReplayTTL <= 0 {
		w.ReplayTTL = 24 * time.Hour
	}
}

// ProviderConfig contains research provider configuration.
type ProviderConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://api.openai.com"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL"    envDefault:"o3-deep-research"`

	// RequestTimeout bounds a single provider call.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// MaxAttempts bounds retries on 429/5xx/timeouts.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`

	// BackoffBase is the first retry delay, doubled per attempt.
	BackoffBase time.Duration `env:"BACKOFF_BASE" envDefault:"2s"`

	// EffectStaleAfter is the lease on an in-progress document effect before
	// a retry may take it over.
	EffectStaleAfter time.Duration `env:"EFFECT_STALE_AFTER" envDefault:"10m"`

	// TitleExpr and SectionsExpr are the JMESPath expressions the document
	// composer applies to the research result JSON.
	TitleExpr    string `env:"TITLE_EXPR"    envDefault:"title"`
	SectionsExpr string `env:"SECTIONS_EXPR" envDefault:"sections"`
}

// Sanitize applies guardrails to provider configuration values.
func (p *ProviderConfig) Sanitize() {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxAttempts > 10 {
		p.MaxAttempts = 10
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 2 * time.Second
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 60 * time.Second
	}
	if p.EffectStaleAfter <= 0 {
		p.EffectStaleAfter = 10 * time.Minute
	}
}

// DocsConfig contains document collaborator configuration.
type DocsConfig struct {
	BaseURL   string `env:"BASE_URL"`
	AuthToken string `env:"AUTH_TOKEN"`
	FolderID  string `env:"FOLDER_ID" envDefault:""`
}

// CRMConfig contains CRM writeback configuration.
type CRMConfig struct {
	BaseURL   string `env:"BASE_URL" envDefault:"https://api.hubapi.com"`
	AuthToken string `env:"AUTH_TOKEN"`
	// Enabled toggles the best-effort deal writeback after document creation.
	Enabled bool `env:"ENABLED" envDefault:"true"`
}

// SweeperConfig contains expiry sweeper configuration.
type SweeperConfig struct {
	// Interval between sweep passes.
	Interval time.Duration `env:"INTERVAL" envDefault:"5m"`

	// Horizon is how long a submitted job may wait for its webhook before
	// being expired.
	Horizon time.Duration `env:"HORIZON" envDefault:"24h"`

	// BatchSize bounds rows touched per pass.
	BatchSize int `env:"BATCH_SIZE" envDefault:"100"`

	// Retention is how long finished execution records are kept. Must exceed
	// the provider's redelivery window.
	Retention time.Duration `env:"RETENTION" envDefault:"72h"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	if s.Interval < time.Minute {
		s.Interval = time.Minute
	}
	if s.Horizon <= 0 {
		s.Horizon = 24 * time.Hour
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}
	if s.BatchSize > 1000 {
		s.BatchSize = 1000
	}
	if s.Retention <= 0 {
		s.Retention = 72 * time.Hour
	}
}

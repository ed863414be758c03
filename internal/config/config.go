package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Email delivery modes.
const (
	EmailDeliveryDirect = "direct"
	EmailDeliveryQueued = "queued"
)

// Config holds all application configuration.
type Config struct {
	// Core settings
	FirestoreProjectID  string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreDatabaseID string `env:"FIRESTORE_DATABASE_ID"           envDefault:"(default)"`
	CredentialsFile     string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	FrontendURL         string `env:"FRONTEND_URL"                    envDefault:"http://localhost:3000"`

	// Mail relay settings
	SMTPHost          string        `env:"SMTP_HOST"           envDefault:"smtp.gmail.com"`
	SMTPPort          int           `env:"SMTP_PORT"           envDefault:"587"`
	SMTPUsername      string        `env:"SMTP_USERNAME"`
	SMTPPassword      string        `env:"SMTP_PASSWORD"`
	SenderEmail       string        `env:"SENDER_EMAIL"        envDefault:"noreply@localhost"`
	SMTPTimeout       time.Duration `env:"SMTP_TIMEOUT"        envDefault:"15s"`
	EmailDeliveryMode string        `env:"EMAIL_DELIVERY_MODE" envDefault:"direct"`

	// Cloud Tasks settings
	GoogleCloudProject            string `env:"GOOGLE_CLOUD_PROJECT"`
	GCPRegion                     string `env:"GCP_REGION"                        envDefault:"europe-west1"`
	CloudTasksQueue               string `env:"CLOUD_TASKS_QUEUE"                 envDefault:"invitation-emails"`
	EmailWorkerURL                string `env:"EMAIL_WORKER_URL"`
	CloudTasksSecret              string `env:"CLOUD_TASKS_SECRET"`
	CloudTasksServiceAccountEmail string `env:"CLOUD_TASKS_SERVICE_ACCOUNT_EMAIL"`

	// Integrations
	SlackWebhookURL      string        `env:"SLACK_WEBHOOK_URL"`
	GitHubToken          string        `env:"GITHUB_TOKEN"`
	GitHubAppID          int64         `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64         `env:"GITHUB_INSTALLATION_ID"`
	GitHubPrivateKeyPath string        `env:"GITHUB_PRIVATE_KEY_PATH"`
	HTTPClientTimeout    time.Duration `env:"HTTP_CLIENT_TIMEOUT"     envDefault:"10s"`

	// Server settings
	Port                  string        `env:"PORT"                    envDefault:"8001"`
	GinMode               string        `env:"GIN_MODE"                envDefault:"debug"`
	LogLevel              string        `env:"LOG_LEVEL"               envDefault:"info"`
	ServerReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"     envDefault:"30s"`
	ServerWriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT"    envDefault:"30s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	AdminAuthEnabled      bool          `env:"ADMIN_AUTH_ENABLED"      envDefault:"false"`
	CORSAllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS"    envDefault:"*"          envSeparator:","`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required configuration is present and valid.
func (c *Config) validate() error {
	var errs []error

	if c.FirestoreProjectID == "" {
		errs = append(errs, errors.New("required environment variable FIRESTORE_PROJECT_ID is not set"))
	}

	if c.GinMode != "debug" && c.GinMode != "release" && c.GinMode != "test" {
		errs = append(errs, fmt.Errorf("invalid GIN_MODE: %s (must be debug, release, or test)", c.GinMode))
	}

	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warn" && c.LogLevel != "error" {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	switch c.EmailDeliveryMode {
	case EmailDeliveryDirect:
	case EmailDeliveryQueued:
		queued := map[string]string{
			"GOOGLE_CLOUD_PROJECT": c.GoogleCloudProject,
			"EMAIL_WORKER_URL":     c.EmailWorkerURL,
			"CLOUD_TASKS_SECRET":   c.CloudTasksSecret,
		}
		for name, value := range queued {
			if value == "" {
				errs = append(errs, fmt.Errorf("%s is required when EMAIL_DELIVERY_MODE=queued", name))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("invalid EMAIL_DELIVERY_MODE: %s (must be direct or queued)", c.EmailDeliveryMode))
	}

	if c.SMTPPort <= 0 {
		errs = append(errs, errors.New("SMTP_PORT must be positive"))
	}

	timeouts := map[string]time.Duration{
		"SERVER_READ_TIMEOUT":     c.ServerReadTimeout,
		"SERVER_WRITE_TIMEOUT":    c.ServerWriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": c.ServerShutdownTimeout,
		"SMTP_TIMEOUT":            c.SMTPTimeout,
		"HTTP_CLIENT_TIMEOUT":     c.HTTPClientTimeout,
	}
	for name, value := range timeouts {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.GitHubAppID != 0 && (c.GitHubInstallationID == 0 || c.GitHubPrivateKeyPath == "") {
		errs = append(errs, errors.New("GITHUB_APP_ID requires GITHUB_INSTALLATION_ID and GITHUB_PRIVATE_KEY_PATH"))
	}

	return errors.Join(errs...)
}

// QueuedEmailDelivery reports whether invitations go through Cloud Tasks.
func (c *Config) QueuedEmailDelivery() bool {
	return c.EmailDeliveryMode == EmailDeliveryQueued
}

// InvitationLink builds the employee-facing link for an invitation token.
func (c *Config) InvitationLink(token string) string {
	return strings.TrimRight(c.FrontendURL, "/") + "/employee-onboarding/" + token
}

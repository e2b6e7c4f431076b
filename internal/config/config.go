// Package config loads the notifier's configuration from environment
// variables. Missing store or provider credentials are a fatal startup
// error; everything else has a sensible default.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Provider names accepted in MAIL_PROVIDER.
const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
)

// Config holds all application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port int `envconfig:"PORT" default:"3000"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DataDir is the root data directory for the outcome database and
	// logs. Defaults to ~/.booking-notifier.
	DataDir string `envconfig:"DATA_DIR"`

	// BookingsCollection is the Firestore collection to watch.
	BookingsCollection string `envconfig:"BOOKINGS_COLLECTION" default:"bookings"`

	// MailProvider selects the delivery backend: "resend" or "smtp".
	MailProvider string `envconfig:"MAIL_PROVIDER" default:"resend"`

	// MailFrom is the sender for all confirmation emails.
	MailFrom string `envconfig:"MAIL_FROM" default:"Fusshn <tickets@fusshn.in>"`

	// ResendAPIKey authenticates against the Resend API.
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`

	// SMTP settings, used when MailProvider is "smtp".
	SMTPHost       string `envconfig:"SMTP_HOST"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"SMTP_PASSWORD"`
	SMTPEncryption string `envconfig:"SMTP_ENCRYPTION" default:"starttls"`

	// Firebase service-account fields, assembled into credentials JSON
	// the same way the store's admin SDK expects them. Alternatively,
	// GOOGLE_APPLICATION_CREDENTIALS may point at a credentials file.
	FirebaseProjectID        string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebasePrivateKeyID     string `envconfig:"FIREBASE_PRIVATE_KEY_ID"`
	FirebasePrivateKey       string `envconfig:"FIREBASE_PRIVATE_KEY"`
	FirebaseClientEmail      string `envconfig:"FIREBASE_CLIENT_EMAIL"`
	FirebaseClientID         string `envconfig:"FIREBASE_CLIENT_ID"`
	FirebaseAuthURI          string `envconfig:"FIREBASE_AUTH_URI" default:"https://accounts.google.com/o/oauth2/auth"`
	FirebaseTokenURI         string `envconfig:"FIREBASE_TOKEN_URI" default:"https://oauth2.googleapis.com/token"`
	FirebaseAuthProviderCert string `envconfig:"FIREBASE_AUTH_PROVIDER_X509_CERT_URL" default:"https://www.googleapis.com/oauth2/v1/certs"`
	FirebaseClientCert       string `envconfig:"FIREBASE_CLIENT_X509_CERT_URL"`
	GoogleCredentialsFile    string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`

	// DispatchWorkers bounds concurrent dispatches within a batch.
	DispatchWorkers int `envconfig:"DISPATCH_WORKERS" default:"4"`

	// DispatchMaxAttempts bounds attempts per booking before dead-letter.
	DispatchMaxAttempts int `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"5"`

	// SendRetryAttempts bounds in-process provider calls per dispatch.
	SendRetryAttempts uint `envconfig:"SEND_RETRY_ATTEMPTS" default:"3"`

	// SendTimeout bounds one provider interaction.
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"30s"`

	// ShutdownGrace bounds the drain of in-flight dispatches on shutdown.
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"15s"`
}

// Load reads Config from environment variables and validates the parts the
// process cannot run without.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".booking-notifier")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required credentials. It is separate from Load so tests
// can exercise it on hand-built configs.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	if c.GoogleCredentialsFile == "" {
		if c.FirebaseClientEmail == "" || c.FirebasePrivateKey == "" {
			return fmt.Errorf("FIREBASE_CLIENT_EMAIL and FIREBASE_PRIVATE_KEY are required when GOOGLE_APPLICATION_CREDENTIALS is not set")
		}
	}

	switch c.MailProvider {
	case ProviderResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required for the resend provider")
		}
	case ProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required for the smtp provider")
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q (want %q or %q)", c.MailProvider, ProviderResend, ProviderSMTP)
	}
	return nil
}

// serviceAccount mirrors the credentials JSON layout of a Google service
// account key file.
type serviceAccount struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
	UniverseDomain          string `json:"universe_domain"`
}

// ServiceAccountJSON assembles credentials JSON from the individual
// FIREBASE_* variables. Literal "\n" sequences in the private key are
// unescaped, since most deployment environments cannot carry real
// newlines in variable values.
func (c *Config) ServiceAccountJSON() ([]byte, error) {
	sa := serviceAccount{
		Type:                    "service_account",
		ProjectID:               c.FirebaseProjectID,
		PrivateKeyID:            c.FirebasePrivateKeyID,
		PrivateKey:              strings.ReplaceAll(c.FirebasePrivateKey, `\n`, "\n"),
		ClientEmail:             c.FirebaseClientEmail,
		ClientID:                c.FirebaseClientID,
		AuthURI:                 c.FirebaseAuthURI,
		TokenURI:                c.FirebaseTokenURI,
		AuthProviderX509CertURL: c.FirebaseAuthProviderCert,
		ClientX509CertURL:       c.FirebaseClientCert,
		UniverseDomain:          "googleapis.com",
	}
	b, err := json.Marshal(sa)
	if err != nil {
		return nil, fmt.Errorf("encoding service account credentials: %w", err)
	}
	return b, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DBPath returns the path to the outcome database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "outcomes.db")
}

// LogDir returns the path to the log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

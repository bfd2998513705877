package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the invite worker
type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	Mail     MailConfig     `yaml:"mail"`
	Invite   InviteConfig   `yaml:"invite"`
	Events   EventsConfig   `yaml:"events"`
	Fields   FieldsConfig   `yaml:"fields"`
}

// WorkerConfig selects the event transport and names the subscriber.
type WorkerConfig struct {
	SubscriberID string `yaml:"subscriber_id"`
	Transport    string `yaml:"transport"` // "redis" or "nats"
}

// ServerConfig holds the ops HTTP listener settings (health probes only).
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. Defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// RedisConfig holds the Redis event bus connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// NATSConfig holds the NATS event bus connection.
type NATSConfig struct {
	URL                  string `yaml:"url"`
	Name                 string `yaml:"name"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	Token                string `yaml:"token"`
	MaxReconnects        int    `yaml:"max_reconnects"`
	ReconnectWaitSeconds int    `yaml:"reconnect_wait_seconds"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
}

// ReconnectWait returns the reconnect delay as a duration
func (c NATSConfig) ReconnectWait() time.Duration {
	return time.Duration(c.ReconnectWaitSeconds) * time.Second
}

// Timeout returns the connect timeout as a duration
func (c NATSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig points at the store that owns invite records.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // "postgres" or "dynamodb"
	URL          string `yaml:"url"`
	InviteTable  string `yaml:"invite_table"`
	KeyAttribute string `yaml:"key_attribute"` // dynamodb partition key
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AWSConfig is shared by the DynamoDB invite table and S3 template loading.
type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// MailConfig selects the mail provider and names the environment variables that
// carry its credential and sender address. The variables are read on every
// dispatch, not at startup.
type MailConfig struct {
	Provider       string    `yaml:"provider"` // "resend" or "ses"
	APIKeyEnv      string    `yaml:"api_key_env"`
	FromEnv        string    `yaml:"from_env"`
	From           string    `yaml:"from"` // fallback when FromEnv is unset
	ResendBaseURL  string    `yaml:"resend_base_url"`
	TimeoutSeconds int       `yaml:"timeout_seconds"`
	SES            SESConfig `yaml:"ses"`
}

// Timeout returns the provider HTTP timeout as a duration
func (c MailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES settings. Keys come from the named env vars.
type SESConfig struct {
	Region       string `yaml:"region"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// InviteConfig holds the invite email content settings.
type InviteConfig struct {
	Subject          string `yaml:"subject"`
	AcceptBaseURL    string `yaml:"accept_base_url"`
	AcceptBaseURLEnv string `yaml:"accept_base_url_env"`
	TemplatePath     string `yaml:"template_path"`
}

// EventsConfig describes where an invite id and event name may live inside an
// inbound envelope. Paths are dot-separated and tried in order.
type EventsConfig struct {
	Name          string   `yaml:"name"`
	IDPaths       []string `yaml:"id_paths"`
	NamePaths     []string `yaml:"name_paths"`
	ContainerKeys []string `yaml:"container_keys"`
}

// FieldsConfig lists the accepted synonyms for each logical invite field, most
// preferred first.
type FieldsConfig struct {
	Email []string `yaml:"email"`
	Token []string `yaml:"token"`
}

// MailSettings is the provider configuration as read at dispatch time.
type MailSettings struct {
	Provider      string
	APIKey        string
	From          string
	AcceptBaseURL string
	Subject       string
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromEnv loads .env (if present), then the YAML file (if present), then
// applies environment overrides for connection settings. A missing config file
// is not an error: the worker can run from defaults and env alone.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("EVENT_TRANSPORT"); v != "" {
		cfg.Worker.Transport = v
	}
	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		cfg.Mail.Provider = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("OPS_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the worker cannot start with. Mail credentials are
// checked per dispatch, not here.
func (c *Config) Validate() error {
	switch c.Worker.Transport {
	case "redis", "nats":
	default:
		return fmt.Errorf("worker.transport: unsupported value %q", c.Worker.Transport)
	}
	switch c.Database.Driver {
	case "postgres", "dynamodb":
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
	switch c.Mail.Provider {
	case "resend", "ses":
	default:
		return fmt.Errorf("mail.provider: unsupported value %q", c.Mail.Provider)
	}
	if len(c.Events.IDPaths) == 0 {
		return errors.New("events.id_paths: at least one path is required")
	}
	if len(c.Fields.Email) == 0 || len(c.Fields.Token) == 0 {
		return errors.New("fields: email and token synonyms are required")
	}
	return nil
}

// MailSettings reads the provider credential, sender address and acceptance
// base URL from the environment. Call it per dispatch so rotated values are
// picked up without a restart.
func (c *Config) MailSettings() MailSettings {
	s := MailSettings{
		Provider:      c.Mail.Provider,
		From:          c.Mail.From,
		AcceptBaseURL: c.Invite.AcceptBaseURL,
		Subject:       c.Invite.Subject,
	}

	keyEnv := c.Mail.APIKeyEnv
	if c.Mail.Provider == "ses" {
		keyEnv = c.Mail.SES.AccessKeyEnv
	}
	if keyEnv != "" {
		s.APIKey = os.Getenv(keyEnv)
	}
	if c.Mail.FromEnv != "" {
		if v := os.Getenv(c.Mail.FromEnv); v != "" {
			s.From = v
		}
	}
	if c.Invite.AcceptBaseURLEnv != "" {
		if v := os.Getenv(c.Invite.AcceptBaseURLEnv); v != "" {
			s.AcceptBaseURL = v
		}
	}
	return s
}

// SESCredentials returns the SES access and secret keys from the environment.
func (c *Config) SESCredentials() (accessKey, secretKey string) {
	return os.Getenv(c.Mail.SES.AccessKeyEnv), os.Getenv(c.Mail.SES.SecretKeyEnv)
}

func applyDefaults(cfg *Config) {
	if cfg.Worker.SubscriberID == "" {
		cfg.Worker.SubscriberID = "invite-created-handler"
	}
	if cfg.Worker.Transport == "" {
		cfg.Worker.Transport = "redis"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6380"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = cfg.Worker.SubscriberID
	}
	if cfg.NATS.MaxReconnects == 0 {
		cfg.NATS.MaxReconnects = -1
	}
	if cfg.NATS.ReconnectWaitSeconds == 0 {
		cfg.NATS.ReconnectWaitSeconds = 2
	}
	if cfg.NATS.TimeoutSeconds == 0 {
		cfg.NATS.TimeoutSeconds = 5
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.KeyAttribute == "" {
		cfg.Database.KeyAttribute = "id"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.Database.InviteTable == "" {
		cfg.Database.InviteTable = "invite"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "resend"
	}
	if cfg.Mail.APIKeyEnv == "" {
		cfg.Mail.APIKeyEnv = "RESEND_API_KEY"
	}
	if cfg.Mail.FromEnv == "" {
		cfg.Mail.FromEnv = "RESEND_FROM"
	}
	if cfg.Mail.ResendBaseURL == "" {
		cfg.Mail.ResendBaseURL = "https://api.resend.com"
	}
	if cfg.Mail.TimeoutSeconds == 0 {
		cfg.Mail.TimeoutSeconds = 30
	}
	if cfg.Mail.SES.Region == "" {
		cfg.Mail.SES.Region = "us-east-1"
	}
	if cfg.Mail.SES.AccessKeyEnv == "" {
		cfg.Mail.SES.AccessKeyEnv = "AWS_SES_ACCESS_KEY"
	}
	if cfg.Mail.SES.SecretKeyEnv == "" {
		cfg.Mail.SES.SecretKeyEnv = "AWS_SES_SECRET_KEY"
	}
	if cfg.Invite.Subject == "" {
		cfg.Invite.Subject = "You've been invited to join FlowDose"
	}
	if cfg.Invite.AcceptBaseURL == "" {
		cfg.Invite.AcceptBaseURL = "https://admin-staging.flowdose.xyz/invite"
	}
	if cfg.Invite.AcceptBaseURLEnv == "" {
		cfg.Invite.AcceptBaseURLEnv = "INVITE_ACCEPT_BASE_URL"
	}
	if cfg.Events.Name == "" {
		cfg.Events.Name = "invite.created"
	}
	if len(cfg.Events.IDPaths) == 0 {
		cfg.Events.IDPaths = []string{"data.id", "id", "event.data.id"}
	}
	if len(cfg.Events.NamePaths) == 0 {
		cfg.Events.NamePaths = []string{"eventName", "event.name"}
	}
	if len(cfg.Events.ContainerKeys) == 0 {
		cfg.Events.ContainerKeys = []string{"container"}
	}
	if len(cfg.Fields.Email) == 0 {
		cfg.Fields.Email = []string{"user_email", "email"}
	}
	if len(cfg.Fields.Token) == 0 {
		cfg.Fields.Token = []string{"token"}
	}
}

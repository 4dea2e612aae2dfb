package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port        string   `env:"PORT,         default=4000"`
	Env         string   `env:"ENV,          default=development"`
	LogLevel    string   `env:"LOG_LEVEL,    default=info"`
	BodyLimit   string   `env:"BODY_LIMIT,   default=5M"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`

	Auth      AuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Mail      MailConfig
	NATS      NATSConfig
	Telemetry TelemetryConfig
}

type AuthConfig struct {
	Secret     string        `env:"JWT_ACCESS_TOKEN, required"`
	TokenTTL   time.Duration `env:"JWT_ACCESS_TOKEN_TTL, default=72h"`
	BcryptCost int           `env:"BCRYPT_COST,          default=10"`
	// RevokeOnCredentialChange refuses tokens issued before the account's
	// last password change or deletion. Requires Redis.
	RevokeOnCredentialChange bool `env:"AUTH_REVOKE_ON_CREDENTIAL_CHANGE, default=false"`
}

type MongoConfig struct {
	URI           string        `env:"DB_URI,            default=mongodb://localhost:27017"`
	Database      string        `env:"DB_NAME,           default=inventory"`
	Timeout       time.Duration `env:"DB_TIMEOUT,        default=10s"`
	RetryInterval time.Duration `env:"DB_RETRY_INTERVAL, default=5s"`
}

// RedisConfig is optional; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// MailConfig is optional; an empty Host logs mail instead of sending it.
type MailConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,    default=587"`
	From     string `env:"SMTP_MAIL"`
	Password string `env:"SMTP_PASSWORD"`
	Workers  int    `env:"MAIL_WORKERS, default=2"`
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL           string `env:"NATS_URL"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX, default=accounts"`
}

type TelemetryConfig struct {
	ServiceName  string `env:"OTEL_SERVICE_NAME,           default=accounts-api"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Stdout       bool   `env:"OTEL_TRACES_STDOUT,          default=false"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the cross-field rules envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN must not be blank"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN_TTL must be positive"))
	}
	if c.Auth.RevokeOnCredentialChange && c.Redis.Addr == "" {
		errs = append(errs, errors.New("AUTH_REVOKE_ON_CREDENTIAL_CHANGE requires REDIS_ADDR"))
	}
	if c.Mail.Workers <= 0 {
		errs = append(errs, errors.New("MAIL_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

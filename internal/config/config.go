package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/validation"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Keycloak    KeycloakConfig  `yaml:"keycloak"`
	Auth        AuthConfig      `yaml:"auth"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	Logging     LoggingConfig   `yaml:"logging"`
	Tracing     TracingConfig   `yaml:"tracing"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Environment string          `yaml:"environment" validate:"oneof=development test staging production"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url" validate:"required"`
	MaxConnections int    `yaml:"max_connections" validate:"min=1"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// KeycloakConfig points at the identity provider used for token introspection.
type KeycloakConfig struct {
	URL          string `yaml:"url" validate:"omitempty,url"`
	Realm        string `yaml:"realm" validate:"required_with=URL"`
	ClientID     string `yaml:"client_id" validate:"required_with=URL"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=URL"`
}

// AuthConfig holds the local HS256 secret used when no identity provider is configured.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" validate:"omitempty,min=32"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" validate:"required"`
	QueueSize    int           `yaml:"queue_size" validate:"min=1"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp none"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

type RateLimitConfig struct {
	PerMinute         int      `yaml:"per_minute" validate:"min=0"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

// ErrNoAuthProvider is returned when neither Keycloak nor a local JWT secret is configured.
var ErrNoAuthProvider = errors.New("either KEYCLOAK_URL or AUTH_JWT_SECRET is required")

// Defaults returns the configuration used before the config file and environment are applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5001,
			RequestTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
			MigrateOnStart: true,
		},
		Keycloak: KeycloakConfig{
			Realm: "master",
		},
		Auth: AuthConfig{
			JWTIssuer: "datastudy",
			TokenTTL:  time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:        "my-topic",
			QueueSize:    1000,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "datastudy",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

// Load reads configuration from environment variables on top of Defaults.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads an optional YAML file, then applies environment overrides and validates.
// An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg, err := LoadFileUnvalidated(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFileUnvalidated is LoadFile without Validate, for commands that need only
// part of the configuration.
func LoadFileUnvalidated(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MigrateOnStart = getEnvBool("DATABASE_MIGRATE_ON_START", cfg.Database.MigrateOnStart)

	cfg.Keycloak.URL = getEnv("KEYCLOAK_URL", cfg.Keycloak.URL)
	cfg.Keycloak.Realm = getEnv("KEYCLOAK_REALM", cfg.Keycloak.Realm)
	cfg.Keycloak.ClientID = getEnv("KEYCLOAK_CLIENT_ID", cfg.Keycloak.ClientID)
	cfg.Keycloak.ClientSecret = getEnv("KEYCLOAK_CLIENT_SECRET", cfg.Keycloak.ClientSecret)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("AUTH_JWT_ISSUER", cfg.Auth.JWTIssuer)
	cfg.Auth.TokenTTL = getEnvDuration("AUTH_TOKEN_TTL", cfg.Auth.TokenTTL)

	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.QueueSize = getEnvInt("KAFKA_QUEUE_SIZE", cfg.Kafka.QueueSize)
	cfg.Kafka.WriteTimeout = getEnvDuration("KAFKA_WRITE_TIMEOUT", cfg.Kafka.WriteTimeout)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("TRACING_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.RateLimit.PerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit.PerMinute)
	cfg.RateLimit.TrustedProxyCIDRs = getEnvList("TRUSTED_PROXY_CIDRS", cfg.RateLimit.TrustedProxyCIDRs)
}

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Keycloak.URL == "" && c.Auth.JWTSecret == "" {
		return ErrNoAuthProvider
	}
	if err := validation.ValidateServiceURL(c.Keycloak.URL, "KEYCLOAK_URL", c.Environment == "production"); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, broker := range c.Kafka.Brokers {
		if err := validation.ValidateBrokerAddress(broker, "KAFKA_BROKERS"); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// UseKeycloak reports whether tokens are introspected against Keycloak.
func (c Config) UseKeycloak() bool {
	return c.Keycloak.URL != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

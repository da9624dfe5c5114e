// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Email       EmailConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
	Pagination  PaginationConfig
	Telemetry   TelemetryConfig
	RateLimit   RateLimitConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port         string
	Host         string
	PublicURL    string // origin used in emailed links
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Driver       string // postgres or memory
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// EventTTL bounds how long a processed webhook event id is remembered.
	EventTTL time.Duration
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	PublicURL       string
	LocalUploadDir  string
	LocalUploadURL  string
}

type PaymentConfig struct {
	StripeSecretKey          string
	StripeWebhookSecret      string
	Currency                 string
	Timeout                  time.Duration
	IgnoreAPIVersionMismatch bool
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

type I18nConfig struct {
	DefaultLocale string
}

type PaginationConfig struct {
	ResPerPage int
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

type RateLimitConfig struct {
	Enabled bool
	General int // requests per minute per IP
	Auth    int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			PublicURL:    getEnv("PUBLIC_URL", ""),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "eshop"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			EventTTL: getEnvAsDuration("REDIS_EVENT_TTL", 72*time.Hour),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			PublicURL:       getEnv("AWS_PUBLIC_URL", ""),
			LocalUploadDir:  getEnv("LOCAL_UPLOAD_DIR", "./uploads"),
			LocalUploadURL:  getEnv("LOCAL_UPLOAD_URL", "/uploads"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:          getEnv("STRIPE_PRIVATE_KEY", ""),
			StripeWebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:                 strings.ToLower(getEnv("STRIPE_CURRENCY", "gbp")),
			Timeout:                  getEnvAsDuration("STRIPE_TIMEOUT", 10*time.Second),
			IgnoreAPIVersionMismatch: getEnvAsBool("STRIPE_IGNORE_API_VERSION_MISMATCH", true),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("DEFAULT_FROM_EMAIL", "noreply@eshop.com"),
			FromName:     getEnv("FROM_NAME", "eShop"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_URL", ""),
		},
		Pagination: PaginationConfig{
			ResPerPage: getEnvAsInt("RES_PER_PAGE", 10),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "eshop-backend"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvAsBool("RATE_LIMIT_ENABLED", true),
			General: getEnvAsInt("RATE_LIMIT_GENERAL", 100),
			Auth:    getEnvAsInt("RATE_LIMIT_AUTH", 10),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Pagination.ResPerPage <= 0 {
		return fmt.Errorf("RES_PER_PAGE must be positive")
	}

	if c.Environment != "production" {
		return nil
	}

	if c.JWT.SecretKey == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Payment.StripeSecretKey == "" || c.Payment.StripeWebhookSecret == "" {
		return fmt.Errorf("stripe secret key and webhook secret are required in production")
	}

	if c.Server.PublicURL == "" {
		return fmt.Errorf("PUBLIC_URL is required in production")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

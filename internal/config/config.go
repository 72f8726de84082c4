package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "bugdex-dev-secret-change-me"

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port      string
	AppEnv    string
	LogFormat string
	LogLevel  string
	JWTSecret string

	KVBackend     string
	RedisAddr     string
	RedisPassword string
	PostgresDSN   string
	MongoURI      string
	MongoDB       string
	SQLitePath    string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	SendGridAPIKey    string
	SendGridFromEmail string
	ResendAPIKey      string
	ResendFromEmail   string

	GitHubClientID     string
	GitHubClientSecret string

	SeedDemoUsers bool
	// EmailCodeRate is the number of code requests allowed per client per minute.
	EmailCodeRate int
}

// Load reads an optional .env file, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getenv("PORT", "8080"),
		AppEnv:    getenv("APP_ENV", "development"),
		LogFormat: getenv("LOG_FORMAT", "text"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		JWTSecret: getenv("JWT_SECRET", DefaultJWTSecret),

		KVBackend:     getenv("KV_BACKEND", "memory"),
		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		PostgresDSN:   getenv("POSTGRES_DSN", ""),
		MongoURI:      getenv("MONGO_URI", ""),
		MongoDB:       getenv("MONGO_DB", "bugdex"),
		SQLitePath:    getenv("SQLITE_PATH", "bugdex.db"),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "bugdex-uploads"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",

		SendGridAPIKey:    getenv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getenv("SENDGRID_FROM_EMAIL", ""),
		ResendAPIKey:      getenv("RESEND_API_KEY", ""),
		ResendFromEmail:   getenv("RESEND_FROM_EMAIL", ""),

		GitHubClientID:     getenv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET", ""),

		SeedDemoUsers: getenv("SEED_DEMO_USERS", "false") == "true",
		EmailCodeRate: getint("EMAIL_CODE_RATE", 5),
	}
}

// Production reports whether development fallbacks must be disabled.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Validate rejects settings that are unsafe in production.
func (c *Config) Validate() error {
	if !c.Production() {
		return nil
	}
	if c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.KVBackend == "memory" {
		return errors.New("KV_BACKEND=memory is not allowed in production")
	}
	if c.SeedDemoUsers {
		return errors.New("SEED_DEMO_USERS must be off in production")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

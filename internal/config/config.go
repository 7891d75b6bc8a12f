// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Database drivers selected from DATABASE_URL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret                     string  `mapstructure:"JWT_SECRET"`
	SecretKey                     string  `mapstructure:"SECRET_KEY"`
	Port                          string  `mapstructure:"PORT"`
	DatabaseURL                   string  `mapstructure:"DATABASE_URL"`
	DatabaseReadURL               string  `mapstructure:"DATABASE_READ_URL"`
	DBSchemaMode                  string  `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool    `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int     `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int     `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string  `mapstructure:"REDIS_URL"`
	AllowedOrigins                string  `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags                  string  `mapstructure:"FEATURE_FLAGS"`
	Env                           string  `mapstructure:"APP_ENV"`
	DraftsDir                     string  `mapstructure:"DRAFTS_DIR"`
	DraftsInMemory                bool    `mapstructure:"DRAFTS_IN_MEMORY"`
	DraftTTLHours                 int     `mapstructure:"DRAFT_TTL_HOURS"`
	PublicBaseURL                 string  `mapstructure:"PUBLIC_BASE_URL"`
	ImportWorkers                 int     `mapstructure:"IMPORT_WORKERS"`
	TracingEnabled                bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter               string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint                  string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio            float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "5000")
	viper.SetDefault("DATABASE_URL", "sqlite:///blog.db")
	viper.SetDefault("DATABASE_READ_URL", "")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("SECRET_KEY", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5000")
	viper.SetDefault("FEATURE_FLAGS", "realtime_notifications=on,draft_autosave=on,local_sync=on")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DRAFTS_DIR", "drafts")
	viper.SetDefault("DRAFTS_IN_MEMORY", false)
	viper.SetDefault("DRAFT_TTL_HOURS", 24*30)
	viper.SetDefault("PUBLIC_BASE_URL", "")
	viper.SetDefault("IMPORT_WORKERS", 8)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	// SECRET_KEY is the name older deployments used.
	if c.JWTSecret == "" {
		c.JWTSecret = c.SecretKey
	}
	if c.JWTSecret == "" {
		c.JWTSecret = defaultJWTSecret
	}
	c.PublicBaseURL = strings.TrimSpace(c.PublicBaseURL)
	if c.PublicBaseURL != "" && !strings.HasSuffix(c.PublicBaseURL, "/") {
		c.PublicBaseURL += "/"
	}
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// DatabaseDriver returns the gorm dialect implied by DATABASE_URL.
func (c *Config) DatabaseDriver() string {
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// DatabaseDSN returns the connection string for the selected driver.
// postgres:// is rewritten to postgresql://, and sqlite:///path URLs become
// a plain file path (four slashes for an absolute path).
func (c *Config) DatabaseDSN() string {
	url := c.DatabaseURL
	if c.DatabaseDriver() == DriverPostgres {
		if strings.HasPrefix(url, "postgres://") {
			return "postgresql://" + strings.TrimPrefix(url, "postgres://")
		}
		return url
	}

	path := strings.TrimPrefix(url, "sqlite://")
	if path == url {
		return url
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return ":memory:"
	}
	return path
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.DraftTTLHours < 0 {
		return errors.New("DRAFT_TTL_HOURS must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DatabaseDriver() == DriverPostgres && !strings.Contains(c.DatabaseURL, "sslmode=") {
			log.Println("WARNING: DATABASE_URL has no sslmode in production. It is highly recommended to use SSL for database connections.")
		}
		if c.DatabaseDriver() == DriverSQLite {
			log.Println("WARNING: running production on SQLite. Concurrent writers are serialized by the database file lock.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	MongoURI            string `mapstructure:"MONGODB_URI"`
	MongoDatabase       string `mapstructure:"MONGODB_DATABASE"`
	MongoMaxPoolSize    uint64 `mapstructure:"MONGODB_MAX_POOL_SIZE"`
	MongoTimeoutSeconds int    `mapstructure:"MONGODB_TIMEOUT_SECONDS"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret        string `mapstructure:"JWT_SECRET"`
	JWTPublicKeyFile string `mapstructure:"JWT_PUBLIC_KEY_FILE"`
	JWTIssuer        string `mapstructure:"JWT_ISSUER"`
	JWTAudience      string `mapstructure:"JWT_AUDIENCE"`

	BlobDriver         string `mapstructure:"BLOB_DRIVER"`
	BlobBucket         string `mapstructure:"BLOB_BUCKET"`
	BlobRegion         string `mapstructure:"BLOB_REGION"`
	BlobEndpoint       string `mapstructure:"BLOB_ENDPOINT"`
	BlobAccessKey      string `mapstructure:"BLOB_ACCESS_KEY"`
	BlobSecretKey      string `mapstructure:"BLOB_SECRET_KEY"`
	BlobLocalDir       string `mapstructure:"BLOB_LOCAL_DIR"`
	GCSCredentialsFile string `mapstructure:"GCS_CREDENTIALS_FILE"`

	ImageMaxUploadSizeMB int `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
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

	setDefaults()

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

func setDefaults() {
	viper.SetDefault("PORT", "5000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGODB_DATABASE", "SocialApp")
	viper.SetDefault("MONGODB_MAX_POOL_SIZE", 100)
	viper.SetDefault("MONGODB_TIMEOUT_SECONDS", 10)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("BLOB_DRIVER", "local")
	viper.SetDefault("BLOB_REGION", "us-east-1")
	viper.SetDefault("BLOB_LOCAL_DIR", "/tmp/socialapp/blobs")
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_MAX_SIZE_MB", 100)
	viper.SetDefault("LOG_MAX_BACKUPS", 3)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 7)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	// Optional keys still need a default so AutomaticEnv values reach Unmarshal.
	for _, key := range []string{
		"JWT_PUBLIC_KEY_FILE", "JWT_ISSUER", "JWT_AUDIENCE",
		"BLOB_BUCKET", "BLOB_ENDPOINT", "BLOB_ACCESS_KEY", "BLOB_SECRET_KEY",
		"GCS_CREDENTIALS_FILE", "LOG_FILE", "OTLP_ENDPOINT",
	} {
		viper.SetDefault(key, "")
	}
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.BlobDriver = strings.ToLower(strings.TrimSpace(c.BlobDriver))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// RateLimitsEnabled reports whether per-route rate limits are enforced. Local
// development and test runs are never throttled.
func (c *Config) RateLimitsEnabled() bool {
	switch c.Env {
	case "", "development", "test":
		return false
	}
	return true
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.MongoDatabase == "" {
		return errors.New("MONGODB_DATABASE is required")
	}
	if c.JWTSecret == "" && c.JWTPublicKeyFile == "" {
		return errors.New("either JWT_SECRET or JWT_PUBLIC_KEY_FILE is required")
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}

	switch c.BlobDriver {
	case "local":
		if c.BlobLocalDir == "" {
			return errors.New("BLOB_LOCAL_DIR is required for the local blob driver")
		}
	case "s3", "gcs":
		if c.BlobBucket == "" {
			return fmt.Errorf("BLOB_BUCKET is required for the %s blob driver", c.BlobDriver)
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.BlobDriver)
	}

	if c.IsProduction() {
		if c.JWTPublicKeyFile == "" {
			if c.JWTSecret == defaultJWTSecret {
				return errors.New("JWT_SECRET must be changed from the default value in production")
			}
			if len(c.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 characters in production")
			}
		}
		if c.BlobDriver == "local" {
			return errors.New("the local blob driver is not allowed in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if c.JWTPublicKeyFile == "" && len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

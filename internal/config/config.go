package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	Environment        string
	LogLevel           string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64

	// Batch hand-off
	UploadDir    string
	BatchWorkers int

	// Classifier
	ModelPath         string
	ModelMetadataPath string
	ClassMappingPath  string
	OnnxRuntimeLib    string
	ModelInputSize    int

	// Largest accepted image side, for uploads and resize targets alike
	MaxImageDimension int

	// Bearer token verification. Exactly one of secret or public key is used;
	// the public key wins when both are set.
	AuthJWTSecret    string
	AuthJWTPublicKey string
	AuthIssuer       string
	AuthAudience     string

	// Optional classification cache
	RedisURL string
	CacheTTL time.Duration

	// Optional Azure blob image source
	AzureStorageAccount string
	AzureStorageKey     string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// IsProduction reports whether gin should run in release mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:                getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                getEnvOrDefault("PORT", "5000"),
		Environment:         getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		RequestTimeout:      parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:   parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize:  parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 32*1024*1024), // 32MB
		UploadDir:           getEnvOrDefault("UPLOAD_DIR", "uploads"),
		BatchWorkers:        int(parseIntOrDefault("BATCH_WORKERS", 4)),
		ModelPath:           getEnvOrDefault("MODEL_PATH", "models/best_model.onnx"),
		ModelMetadataPath:   os.Getenv("MODEL_METADATA_PATH"),
		ClassMappingPath:    getEnvOrDefault("CLASS_MAPPING_PATH", "class_mapping.json"),
		OnnxRuntimeLib:      os.Getenv("ONNXRUNTIME_LIB"),
		ModelInputSize:      int(parseIntOrDefault("MODEL_INPUT_SIZE", 224)),
		MaxImageDimension:   int(parseIntOrDefault("MAX_IMAGE_DIMENSION", 8192)),
		AuthJWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
		AuthJWTPublicKey:    os.Getenv("AUTH_JWT_PUBLIC_KEY"),
		AuthIssuer:          os.Getenv("AUTH_ISSUER"),
		AuthAudience:        os.Getenv("AUTH_AUDIENCE"),
		RedisURL:            os.Getenv("REDIS_URL"),
		CacheTTL:            parseDurationOrDefault("CACHE_TTL", time.Hour),
		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants LoadFromEnv cannot express through defaults.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be > 0 (got %d)", c.BatchWorkers)
	}
	if c.ModelInputSize <= 0 {
		return fmt.Errorf("MODEL_INPUT_SIZE must be > 0 (got %d)", c.ModelInputSize)
	}
	if c.MaxImageDimension < c.ModelInputSize {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be >= MODEL_INPUT_SIZE (got %d < %d)",
			c.MaxImageDimension, c.ModelInputSize)
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.AuthJWTSecret == "" && c.AuthJWTPublicKey == "" {
		return fmt.Errorf("one of AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY is required")
	}
	if (c.AzureStorageAccount == "") != (c.AzureStorageKey == "") {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
